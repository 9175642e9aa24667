package core

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// defaultPollFrequency is used between polls when the service does not
// send Retry-After.
const defaultPollFrequency = 30 * time.Second

// Poller tracks a long-running operation through its status monitor
// until it reaches a terminal state.
type Poller[T any] struct {
	pl Pipeline

	monitorURL  string
	resourceURL string
	status      string
	lastResp    *http.Response
	result      *T
}

type statusMonitor struct {
	Status           string `json:"status"`
	ResourceLocation string `json:"resourceLocation,omitempty"`
	Error            *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewPoller starts tracking the operation accepted by resp. The
// response must carry an Operation-Location header unless the service
// completed synchronously, in which case the poller is born done with
// the response body as its result.
func NewPoller[T any](resp *http.Response, pl Pipeline) (*Poller[T], error) {
	p := &Poller[T]{
		pl:       pl,
		status:   nimbus.OperationStatusInProgress,
		lastResp: resp,
	}

	p.monitorURL = resp.Header.Get(nimbus.OperationLocationHeader)
	if p.monitorURL == "" {
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			// synchronous completion
			p.status = nimbus.OperationStatusSucceeded
			return p, nil
		}
		return nil, errors.Errorf("response %d does not describe a long-running operation", resp.StatusCode)
	}

	// some services include the first monitor state in the accepted
	// response body
	var monitor statusMonitor
	if body, err := Payload(resp); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &monitor); err == nil && monitor.Status != "" {
			p.applyMonitor(monitor)
		}
	}
	return p, nil
}

func (p *Poller[T]) applyMonitor(monitor statusMonitor) {
	p.status = monitor.Status
	if monitor.ResourceLocation != "" {
		p.resourceURL = monitor.ResourceLocation
	}
}

// Done reports whether the operation has reached a terminal state.
func (p *Poller[T]) Done() bool {
	switch p.status {
	case nimbus.OperationStatusSucceeded, nimbus.OperationStatusFailed, nimbus.OperationStatusCanceled:
		return true
	}
	return false
}

// Poll fetches the status monitor once. Calling Poll after the
// operation is done returns the last response without another request.
func (p *Poller[T]) Poll(ctx context.Context) (*http.Response, error) {
	if p.Done() {
		return p.lastResp, nil
	}

	req, err := NewRequest(ctx, http.MethodGet, p.monitorURL)
	if err != nil {
		return nil, err
	}
	resp, err := p.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !HasStatusCode(resp, http.StatusOK, http.StatusAccepted) {
		return nil, NewResponseError(resp)
	}

	var monitor statusMonitor
	if err := UnmarshalAsJSON(resp, &monitor); err != nil {
		return nil, err
	}
	if monitor.Status == "" {
		return nil, errors.New("status monitor response is missing a status")
	}
	p.applyMonitor(monitor)
	p.lastResp = resp
	return resp, nil
}

// PollUntilDoneOptions configures PollUntilDone.
type PollUntilDoneOptions struct {
	// Frequency is the wait between polls when the service does not
	// send Retry-After.
	Frequency time.Duration
}

// PollUntilDone polls until the operation terminates, honoring
// Retry-After between polls, and returns the final result.
func (p *Poller[T]) PollUntilDone(ctx context.Context, opts *PollUntilDoneOptions) (T, error) {
	frequency := defaultPollFrequency
	if opts != nil && opts.Frequency > 0 {
		frequency = opts.Frequency
	}

	for !p.Done() {
		resp, err := p.Poll(ctx)
		if err != nil {
			var empty T
			return empty, err
		}
		if p.Done() {
			break
		}

		delay := frequency
		if ra := retryAfter(resp); ra > 0 {
			delay = ra
		}
		grip.Debug(message.Fields{
			"message":  "operation in progress",
			"monitor":  p.monitorURL,
			"status":   p.status,
			"delay_ms": delay.Milliseconds(),
		})
		select {
		case <-ctx.Done():
			var empty T
			return empty, errors.Wrap(ctx.Err(), "polling canceled")
		case <-time.After(delay):
		}
	}
	return p.Result(ctx)
}

// Result returns the operation's outcome. It is an error to call
// Result before Done reports true.
func (p *Poller[T]) Result(ctx context.Context) (T, error) {
	var empty T
	if !p.Done() {
		return empty, errors.New("operation has not reached a terminal state")
	}
	if p.status != nimbus.OperationStatusSucceeded {
		return empty, errors.WithStack(NewResponseError(p.lastResp))
	}
	if p.result != nil {
		return *p.result, nil
	}

	resp := p.lastResp
	if p.resourceURL != "" {
		req, err := NewRequest(ctx, http.MethodGet, p.resourceURL)
		if err != nil {
			return empty, err
		}
		resp, err = p.pl.Do(req)
		if err != nil {
			return empty, err
		}
		if !HasStatusCode(resp, http.StatusOK) {
			return empty, NewResponseError(resp)
		}
	}

	result := new(T)
	if err := UnmarshalAsJSON(resp, result); err != nil {
		return empty, err
	}
	p.result = result
	return *p.result, nil
}

type resumeState struct {
	MonitorURL  string `json:"monitorURL"`
	ResourceURL string `json:"resourceURL,omitempty"`
	Status      string `json:"status"`
}

// ResumeToken serializes the poller so polling can continue in another
// process. Tokens are only issued for operations still in flight.
func (p *Poller[T]) ResumeToken() (string, error) {
	if p.Done() {
		return "", errors.New("cannot create a resume token for a completed operation")
	}
	data, err := json.Marshal(resumeState{
		MonitorURL:  p.monitorURL,
		ResourceURL: p.resourceURL,
		Status:      p.status,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshaling resume token")
	}
	return string(data), nil
}

// NewPollerFromResumeToken rebuilds a Poller from a ResumeToken.
func NewPollerFromResumeToken[T any](token string, pl Pipeline) (*Poller[T], error) {
	var state resumeState
	if err := json.Unmarshal([]byte(token), &state); err != nil {
		return nil, errors.Wrap(err, "parsing resume token")
	}
	if state.MonitorURL == "" {
		return nil, errors.New("resume token is missing the status monitor URL")
	}
	return &Poller[T]{
		pl:          pl,
		monitorURL:  state.MonitorURL,
		resourceURL: state.ResourceURL,
		status:      state.Status,
	}, nil
}

package core

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	defaultMaxRetries    = 3
	defaultRetryDelay    = 800 * time.Millisecond
	defaultMaxRetryDelay = 60 * time.Second
)

var defaultRetryStatusCodes = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryOptions configures the pipeline's retry policy.
type RetryOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	// A negative value disables retries.
	MaxRetries int

	// TryTimeout bounds a single attempt, including reading the
	// response body. Leave zero for operations that stream large
	// bodies.
	TryTimeout time.Duration

	// RetryDelay is the backoff floor; MaxRetryDelay the ceiling.
	// Delays grow exponentially with jitter between the two.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// StatusCodes replaces the default set of retriable statuses.
	StatusCodes []int
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	} else if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.MaxRetryDelay == 0 {
		o.MaxRetryDelay = defaultMaxRetryDelay
	}
	if o.StatusCodes == nil {
		o.StatusCodes = defaultRetryStatusCodes
	}
	return o
}

// RetryTransportErrors, set as an operation value, lets a
// non-idempotent request be retried after an ambiguous transport
// failure. Without it the policy only replays transport errors for
// methods that are safe to send twice.
type RetryTransportErrors bool

type retryPolicy struct {
	opts RetryOptions
}

// NewRetryPolicy is exposed for callers assembling custom pipelines;
// NewPipeline installs one automatically.
func NewRetryPolicy(opts RetryOptions) Policy {
	return &retryPolicy{opts: opts.withDefaults()}
}

func (p *retryPolicy) Do(req *Request) (*http.Response, error) {
	b := &backoff.Backoff{
		Min:    p.opts.RetryDelay,
		Max:    p.opts.MaxRetryDelay,
		Factor: 2,
		Jitter: true,
	}

	var resp *http.Response
	var err error
	for try := 0; ; try++ {
		if err = req.RewindBody(); err != nil {
			return nil, err
		}

		resp, err = p.attempt(req)

		if err == nil && !HasStatusCode(resp, p.opts.StatusCodes...) {
			return resp, nil
		}
		if err != nil && IsNonRetriable(err) {
			return nil, err
		}
		if err != nil && !p.transportErrorRetriable(req) {
			return nil, err
		}
		if try >= p.opts.MaxRetries {
			if err != nil {
				return nil, errors.Wrapf(err, "giving up after %d attempts", try+1)
			}
			return resp, nil
		}
		if req.Body() == nil && req.Raw().Body != nil {
			// a body that did not come through SetBody cannot be
			// rewound, so it is never replayed
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		delay := b.ForAttempt(float64(try))
		if ra := retryAfter(resp); ra > 0 {
			delay = ra
		}
		grip.Debug(message.Fields{
			"message":  "retrying request",
			"method":   req.Raw().Method,
			"url":      req.Raw().URL.Redacted(),
			"attempt":  try + 1,
			"max":      p.opts.MaxRetries + 1,
			"delay_ms": delay.Milliseconds(),
			"status":   statusOrZero(resp),
		})
		Drain(resp)

		select {
		case <-req.Raw().Context().Done():
			return nil, errors.Wrap(req.Raw().Context().Err(), "request canceled during retry backoff")
		case <-time.After(delay):
		}
	}
}

// attempt runs one try, applying the per-try timeout when configured.
func (p *retryPolicy) attempt(req *Request) (*http.Response, error) {
	if p.opts.TryTimeout <= 0 {
		return req.Next()
	}

	ctx, cancel := context.WithTimeout(req.Raw().Context(), p.opts.TryTimeout)
	tryReq := req.Clone(ctx)
	resp, err := tryReq.Next()
	if err != nil {
		cancel()
		return nil, err
	}
	// the context must stay alive until the body has been read
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// transportErrorRetriable reports whether a transport-level failure on
// this request may be replayed. The request may have produced a side
// effect on the server before the connection broke, so only idempotent
// methods qualify unless the caller opted in.
func (p *retryPolicy) transportErrorRetriable(req *Request) bool {
	var override RetryTransportErrors
	if req.OperationValue(&override) && bool(override) {
		return true
	}
	switch req.Raw().Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace,
		http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(http.TimeFormat, ra); err == nil {
		return time.Until(t)
	}
	return 0
}

func statusOrZero(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}

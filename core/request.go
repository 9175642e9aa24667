package core

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// Request wraps an *http.Request as it moves through the pipeline. It
// owns a rewindable copy of the body so the retry and redirect
// policies can replay it, and a typed bag of operation values that
// lets service clients talk to individual policies without widening
// every signature in between.
type Request struct {
	req      *http.Request
	body     io.ReadSeekCloser
	policies []Policy
	values   opValues
}

type opValues map[reflect.Type]interface{}

func (ov opValues) set(value interface{}) {
	ov[reflect.TypeOf(value)] = value
}

func (ov opValues) get(value interface{}) bool {
	v, ok := ov[reflect.TypeOf(value).Elem()]
	if ok {
		reflect.ValueOf(value).Elem().Set(reflect.ValueOf(v))
	}
	return ok
}

// NewRequest creates a Request for the given absolute endpoint URL.
func NewRequest(ctx context.Context, method, endpoint string) (*Request, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing request URL '%s'", endpoint)
	}
	if !u.IsAbs() {
		return nil, errors.Errorf("request URL '%s' is not absolute", endpoint)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	return &Request{req: req, values: opValues{}}, nil
}

// Raw returns the underlying *http.Request. Policies mutate it in
// place.
func (req *Request) Raw() *http.Request {
	return req.req
}

// Next hands the request to the next policy in the chain. Each policy
// receives a shallow copy so that unwinding the stack restores the
// policy cursor.
func (req *Request) Next() (*http.Response, error) {
	if len(req.policies) == 0 {
		return nil, errors.New("no more policies; pipeline is missing a transport")
	}
	nextPolicy := req.policies[0]
	nextReq := *req
	nextReq.policies = req.policies[1:]
	return nextPolicy.Do(&nextReq)
}

// SetOperationValue stashes a value addressed by its concrete type for
// a downstream policy to pick up.
func (req *Request) SetOperationValue(value interface{}) {
	if req.values == nil {
		req.values = opValues{}
	}
	req.values.set(value)
}

// OperationValue retrieves a value stored with SetOperationValue into
// the pointed-to destination, reporting whether one was present.
func (req *Request) OperationValue(value interface{}) bool {
	if req.values == nil {
		return false
	}
	return req.values.get(value)
}

// SetBody attaches a rewindable body and content type. Content-Length
// is derived by seeking to the end.
func (req *Request) SetBody(body io.ReadSeekCloser, contentType string) error {
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "sizing request body")
	}
	if _, err = body.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "rewinding request body")
	}
	req.body = body
	req.req.Body = body
	req.req.ContentLength = size
	req.req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	if contentType != "" {
		req.req.Header.Set(nimbus.ContentTypeHeader, contentType)
	}
	if size == 0 {
		// sending a zero-length body confuses some proxies
		req.body = nil
		req.req.Body = nil
	}
	return nil
}

// Body returns the rewindable body, or nil when the request has none.
func (req *Request) Body() io.ReadSeekCloser {
	return req.body
}

// RewindBody seeks the body back to the start before a replay.
func (req *Request) RewindBody() error {
	if req.body == nil {
		return nil
	}
	if _, err := req.body.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "rewinding request body")
	}
	req.req.Body = req.body
	return nil
}

// Close releases the request body.
func (req *Request) Close() error {
	if req.body == nil {
		return nil
	}
	return errors.WithStack(req.body.Close())
}

// WithContext swaps the context on the underlying request, for
// policies (tracing) that need to thread values downstream.
func (req *Request) WithContext(ctx context.Context) {
	req.req = req.req.WithContext(ctx)
}

// Clone returns a deep-enough copy of the request for a replay with
// different URL or headers, sharing the same rewindable body.
func (req *Request) Clone(ctx context.Context) *Request {
	clone := *req
	clone.req = req.req.Clone(ctx)
	if req.body != nil {
		clone.req.Body = req.body
	}
	return &clone
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// NopCloser adapts an io.ReadSeeker to the io.ReadSeekCloser wanted by
// SetBody.
func NopCloser(rs io.ReadSeeker) io.ReadSeekCloser {
	return nopCloser{rs}
}

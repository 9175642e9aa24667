package core

import (
	"net/http"

	"github.com/google/uuid"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

type clientRequestIDPolicy struct{}

// newClientRequestIDPolicy stamps every request with a client-side
// correlation ID unless the caller already set one.
func newClientRequestIDPolicy() Policy {
	return clientRequestIDPolicy{}
}

func (clientRequestIDPolicy) Do(req *Request) (*http.Response, error) {
	if req.Raw().Header.Get(nimbus.ClientRequestIDHeader) == "" {
		req.Raw().Header.Set(nimbus.ClientRequestIDHeader, uuid.New().String())
	}
	return req.Next()
}

// ClientRequestID returns the correlation ID the SDK attached to the
// request that produced this response.
func ClientRequestID(resp *http.Response) string {
	if resp == nil || resp.Request == nil {
		return ""
	}
	return resp.Request.Header.Get(nimbus.ClientRequestIDHeader)
}

// RequestID returns the service-side request ID echoed on the
// response, for support escalations.
func RequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Header.Get(nimbus.RequestIDHeader)
}

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// ResponseError is returned when a service responds with an
// unexpected status code. The error code comes from the
// x-nim-error-code header or, failing that, the standard error body
// envelope {"error":{"code":...}}.
type ResponseError struct {
	ErrorCode   string
	StatusCode  int
	RawResponse *http.Response
}

// NewResponseError builds a *ResponseError from a response, consuming
// and caching the body so callers can still read it.
func NewResponseError(resp *http.Response) error {
	respErr := &ResponseError{
		StatusCode:  resp.StatusCode,
		RawResponse: resp,
	}

	if code := resp.Header.Get(nimbus.ErrorCodeHeader); code != "" {
		respErr.ErrorCode = code
		return respErr
	}

	body, err := Payload(resp)
	if err != nil {
		return respErr
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		respErr.ErrorCode = envelope.Error.Code
	}
	return respErr
}

func (e *ResponseError) Error() string {
	buf := &bytes.Buffer{}
	if e.RawResponse != nil && e.RawResponse.Request != nil {
		fmt.Fprintf(buf, "%s %s: ", e.RawResponse.Request.Method, e.RawResponse.Request.URL.Redacted())
	}
	fmt.Fprintf(buf, "response %d", e.StatusCode)
	if e.ErrorCode != "" {
		fmt.Fprintf(buf, " (%s)", e.ErrorCode)
	}
	if e.RawResponse != nil {
		if body, err := Payload(e.RawResponse); err == nil && len(body) > 0 {
			fmt.Fprintf(buf, ": %s", string(body))
		}
	}
	return buf.String()
}

// NonRetriable marks the error so the retry policy gives up
// immediately.
func (e *ResponseError) NonRetriable() {}

// HasStatusCode reports whether the response has one of the given
// status codes.
func HasStatusCode(resp *http.Response, codes ...int) bool {
	if resp == nil {
		return false
	}
	for _, code := range codes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

type nonRetriable interface {
	NonRetriable()
}

// IsNonRetriable reports whether any error in the chain has marked
// itself terminal for the retry policy.
func IsNonRetriable(err error) bool {
	var nr nonRetriable
	return errors.As(err, &nr)
}

type shieldedError struct {
	error
}

func (shieldedError) NonRetriable() {}

// NonRetriableError wraps err so the retry policy will not retry it.
func NonRetriableError(err error) error {
	if err == nil {
		return nil
	}
	return shieldedError{err}
}

package core

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

type cachedPayload struct {
	*bytes.Reader
	data []byte
}

func (cachedPayload) Close() error { return nil }

// Payload reads and returns the response body. The body is cached on
// the response, so Payload can be called repeatedly and the body can
// still be read afterwards.
func Payload(resp *http.Response) ([]byte, error) {
	if cp, ok := resp.Body.(*cachedPayload); ok {
		return cp.data, nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	resp.Body = &cachedPayload{Reader: bytes.NewReader(data), data: data}
	return data, nil
}

// Drain discards and closes the response body so the underlying
// connection can be reused.
func Drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// MarshalAsJSON sets the request body to the JSON encoding of v.
func MarshalAsJSON(req *Request, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshaling request body")
	}
	return req.SetBody(NopCloser(bytes.NewReader(data)), nimbus.ContentTypeJSON)
}

// UnmarshalAsJSON decodes the response body into v.
func UnmarshalAsJSON(resp *http.Response, v interface{}) error {
	body, err := Payload(resp)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, v), "unmarshaling response body")
}

// JoinPaths appends already-escaped path segments to an endpoint URL,
// preserving any query string on the endpoint.
func JoinPaths(endpoint string, paths ...string) string {
	if len(paths) == 0 {
		return endpoint
	}
	host, query, _ := strings.Cut(endpoint, "?")
	for _, p := range paths {
		host = strings.TrimRight(host, "/") + "/" + strings.Trim(p, "/")
	}
	if query != "" {
		host += "?" + query
	}
	return host
}

// EscapePath escapes each segment of a slash-separated resource path,
// leaving the separators intact.
func EscapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// EncodeQueryParams replaces the request's query string with the given
// values, sorted and escaped.
func EncodeQueryParams(req *Request, params url.Values) {
	req.Raw().URL.RawQuery = params.Encode()
}

package core

import (
	"net/http"
	"net/url"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// LogOptions controls what the logging policy is allowed to emit.
// Headers and query parameters are redacted unless allow-listed here
// or in the SDK defaults.
type LogOptions struct {
	AllowedHeaders     []string
	AllowedQueryParams []string
}

var defaultAllowedHeaders = []string{
	"Accept",
	"Cache-Control",
	"Content-Length",
	"Content-Type",
	"Date",
	"ETag",
	"Last-Modified",
	"Retry-After",
	"User-Agent",
	nimbus.ClientRequestIDHeader,
	nimbus.RequestIDHeader,
	nimbus.ErrorCodeHeader,
}

var defaultAllowedQueryParams = []string{
	"api-version",
	"marker",
	"maxresults",
	"prefix",
}

type loggingPolicy struct {
	allowedHeaders map[string]struct{}
	allowedParams  map[string]struct{}
}

func newLoggingPolicy(opts LogOptions) Policy {
	p := &loggingPolicy{
		allowedHeaders: map[string]struct{}{},
		allowedParams:  map[string]struct{}{},
	}
	for _, h := range append(defaultAllowedHeaders, opts.AllowedHeaders...) {
		p.allowedHeaders[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	for _, q := range append(defaultAllowedQueryParams, opts.AllowedQueryParams...) {
		p.allowedParams[q] = struct{}{}
	}
	return p
}

func (p *loggingPolicy) Do(req *Request) (*http.Response, error) {
	start := time.Now()
	grip.Debug(message.Fields{
		"message": "sending request",
		"method":  req.Raw().Method,
		"url":     p.redactedURL(req.Raw().URL),
		"headers": p.redactedHeaders(req.Raw().Header),
	})

	resp, err := req.Next()
	if err != nil {
		grip.Debug(message.WrapError(err, message.Fields{
			"message":     "request failed",
			"method":      req.Raw().Method,
			"url":         p.redactedURL(req.Raw().URL),
			"duration_ms": time.Since(start).Milliseconds(),
		}))
		return nil, err
	}

	grip.Debug(message.Fields{
		"message":     "received response",
		"method":      req.Raw().Method,
		"url":         p.redactedURL(req.Raw().URL),
		"status":      resp.StatusCode,
		"request_id":  RequestID(resp),
		"duration_ms": time.Since(start).Milliseconds(),
		"headers":     p.redactedHeaders(resp.Header),
	})
	return resp, nil
}

func (p *loggingPolicy) redactedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		if _, ok := p.allowedHeaders[http.CanonicalHeaderKey(k)]; ok {
			out[k] = h.Get(k)
		} else {
			out[k] = "REDACTED"
		}
	}
	return out
}

func (p *loggingPolicy) redactedURL(u *url.URL) string {
	cp := *u
	q := cp.Query()
	for k := range q {
		if _, ok := p.allowedParams[k]; !ok {
			q.Set(k, "REDACTED")
		}
	}
	cp.RawQuery = q.Encode()
	return cp.Redacted()
}

// Package core implements the shared HTTP pipeline used by every
// Nimbus service client: an ordered chain of policies (telemetry,
// request IDs, retry, authentication, redirects, content validation,
// logging, tracing) terminating in a transport. Service packages build
// a Pipeline once at client construction and send every operation
// through it.
package core

import (
	"net/http"

	"github.com/pkg/errors"
)

// Policy is a node in the pipeline. A policy mutates or inspects the
// request, calls req.Next() to hand off to the rest of the chain, and
// may then inspect the response on the way back out.
type Policy interface {
	Do(req *Request) (*http.Response, error)
}

// PolicyFunc adapts an ordinary function to the Policy interface.
type PolicyFunc func(*Request) (*http.Response, error)

// Do implements Policy.
func (f PolicyFunc) Do(req *Request) (*http.Response, error) {
	return f(req)
}

// Transporter sends a request over the wire. The zero transport is the
// shared pooled client; tests substitute a mock.
type Transporter interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pipeline is an immutable ordered policy chain. The zero value is not
// usable; construct one with NewPipeline.
type Pipeline struct {
	policies []Policy
}

// PipelineOptions carries the policies a service client contributes to
// its own pipeline, as opposed to the ones the end user contributes
// through ClientOptions.
type PipelineOptions struct {
	// PerCall policies run once per operation.
	PerCall []Policy

	// PerRetry policies run once per attempt, after the retry policy.
	// Authentication belongs here so credentials are refreshed and
	// signatures recomputed on every try.
	PerRetry []Policy
}

// ClientOptions are the end-user knobs accepted by every service
// client constructor.
type ClientOptions struct {
	// APIVersion overrides the service client's default api-version
	// query parameter.
	APIVersion string

	// ApplicationID is prepended to the SDK's User-Agent string.
	ApplicationID string

	// DisableTracing turns off the OpenTelemetry span-per-attempt
	// policy.
	DisableTracing bool

	Logging LogOptions
	Retry   RetryOptions

	// Transport replaces the default pooled HTTP client.
	Transport Transporter

	PerCallPolicies  []Policy
	PerRetryPolicies []Policy
}

func (o *ClientOptions) clone() *ClientOptions {
	if o == nil {
		return &ClientOptions{}
	}
	cp := *o
	return &cp
}

// NewPipeline assembles the policy chain for a service client. The
// module name and version feed the telemetry policy. Ordering is
// fixed: telemetry, client request ID, per-call (client then user),
// retry, content validation, per-retry (client then user), tracing,
// redirect, logging, transport. Content validation sits before the
// per-retry policies so that auth signatures cover the checksum
// headers it attaches.
func NewPipeline(module, version string, plOpts PipelineOptions, opts *ClientOptions) Pipeline {
	opts = opts.clone()

	policies := []Policy{
		newTelemetryPolicy(module, version, opts.ApplicationID),
		newClientRequestIDPolicy(),
	}
	policies = append(policies, plOpts.PerCall...)
	policies = append(policies, opts.PerCallPolicies...)
	policies = append(policies, NewRetryPolicy(opts.Retry))
	policies = append(policies, newContentValidationPolicy())
	policies = append(policies, plOpts.PerRetry...)
	policies = append(policies, opts.PerRetryPolicies...)
	if !opts.DisableTracing {
		policies = append(policies, newTracingPolicy())
	}
	policies = append(policies,
		newRedirectPolicy(),
		newLoggingPolicy(opts.Logging),
	)

	transport := opts.Transport
	if transport == nil {
		transport = DefaultTransport()
	}
	policies = append(policies, transportPolicy{transport: transport})

	return Pipeline{policies: policies}
}

// Do sends the request through the chain and returns the transport's
// response. The caller owns the response body.
func (p Pipeline) Do(req *Request) (*http.Response, error) {
	if len(p.policies) == 0 {
		return nil, errors.New("pipeline has no policies; use NewPipeline")
	}
	req.policies = p.policies
	return req.Next()
}

// transportPolicy terminates the chain.
type transportPolicy struct {
	transport Transporter
}

func (t transportPolicy) Do(req *Request) (*http.Response, error) {
	resp, err := t.transport.Do(req.Raw())
	if err != nil {
		return nil, errors.Wrap(err, "sending request")
	}
	if resp == nil {
		return nil, errors.New("transport returned a nil response and a nil error")
	}
	return resp, nil
}

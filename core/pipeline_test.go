package core

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// mockTransport returns canned responses and records the requests it
// saw.
type mockTransport struct {
	mu        sync.Mutex
	responses []*http.Response
	err       error
	requests  []*http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		resp := mockResponse(http.StatusOK, "")
		resp.Request = req
		return resp, nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	resp.Request = req
	return resp, nil
}

func mockResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func namedPolicy(name string, order *[]string) Policy {
	return PolicyFunc(func(req *Request) (*http.Response, error) {
		*order = append(*order, name)
		return req.Next()
	})
}

func TestPipelineOrdersPolicies(t *testing.T) {
	var order []string
	transport := &mockTransport{}

	pl := NewPipeline("test", "0.0.1", PipelineOptions{
		PerCall:  []Policy{namedPolicy("client-per-call", &order)},
		PerRetry: []Policy{namedPolicy("client-per-retry", &order)},
	}, &ClientOptions{
		Transport:        transport,
		DisableTracing:   true,
		PerCallPolicies:  []Policy{namedPolicy("user-per-call", &order)},
		PerRetryPolicies: []Policy{namedPolicy("user-per-retry", &order)},
	})

	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud")
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{"client-per-call", "user-per-call", "client-per-retry", "user-per-retry"}, order)
	require.Len(t, transport.requests, 1)
}

func TestPipelineRerunsPerRetryPoliciesOnRetry(t *testing.T) {
	var order []string
	transport := &mockTransport{responses: []*http.Response{
		mockResponse(http.StatusServiceUnavailable, ""),
		mockResponse(http.StatusOK, ""),
	}}

	pl := NewPipeline("test", "0.0.1", PipelineOptions{
		PerCall:  []Policy{namedPolicy("per-call", &order)},
		PerRetry: []Policy{namedPolicy("per-retry", &order)},
	}, &ClientOptions{
		Transport:      transport,
		DisableTracing: true,
		Retry:          RetryOptions{RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond},
	})

	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud")
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{"per-call", "per-retry", "per-retry"}, order)
	assert.Len(t, transport.requests, 2)
}

func TestPipelineChecksumHeadersVisibleToPerRetryPolicies(t *testing.T) {
	var seenCRC, seenMD5 string
	transport := &mockTransport{responses: []*http.Response{
		mockResponse(http.StatusCreated, ""),
	}}

	observer := PolicyFunc(func(req *Request) (*http.Response, error) {
		seenCRC = req.Raw().Header.Get(nimbus.ContentCRC64Header)
		seenMD5 = req.Raw().Header.Get("Content-MD5")
		return req.Next()
	})

	pl := NewPipeline("test", "0.0.1", PipelineOptions{
		PerRetry: []Policy{observer},
	}, &ClientOptions{
		Transport:      transport,
		DisableTracing: true,
	})

	req, err := NewRequest(context.Background(), http.MethodPut, "https://svc.nimbus.cloud/thing")
	require.NoError(t, err)
	require.NoError(t, req.SetBody(NopCloser(strings.NewReader("payload")), "application/octet-stream"))
	req.SetOperationValue(ChecksumOptions{ComputeMD5: true, ComputeCRC64: true})

	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, seenCRC, "checksum headers must be attached before per-retry policies run")
	assert.NotEmpty(t, seenMD5)
}

func TestPipelineTelemetryAndRequestID(t *testing.T) {
	transport := &mockTransport{}
	pl := NewPipeline("widgets", "1.2.3", PipelineOptions{}, &ClientOptions{
		Transport:      transport,
		DisableTracing: true,
		ApplicationID:  "myapp 1.0",
	})

	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud")
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sent := transport.requests[0]
	ua := sent.Header.Get("User-Agent")
	assert.True(t, strings.HasPrefix(ua, "myapp/1.0 nimbus-sdk-go-widgets/1.2.3"), "unexpected user agent %q", ua)
	assert.NotEmpty(t, sent.Header.Get(nimbus.ClientRequestIDHeader))
}

func TestPipelinePreservesCallerRequestID(t *testing.T) {
	transport := &mockTransport{}
	pl := NewPipeline("widgets", "1.2.3", PipelineOptions{}, &ClientOptions{
		Transport:      transport,
		DisableTracing: true,
	})

	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud")
	require.NoError(t, err)
	req.Raw().Header.Set(nimbus.ClientRequestIDHeader, "caller-chosen")
	resp, err := pl.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "caller-chosen", transport.requests[0].Header.Get(nimbus.ClientRequestIDHeader))
	assert.Equal(t, "caller-chosen", ClientRequestID(resp))
}

func TestPipelineWithoutPoliciesFails(t *testing.T) {
	var pl Pipeline
	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud")
	require.NoError(t, err)
	_, err = pl.Do(req)
	assert.Error(t, err)
}

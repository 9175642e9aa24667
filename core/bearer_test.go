package core

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredential struct {
	mu     sync.Mutex
	calls  int32
	token  AccessToken
	err    error
	scopes []string
}

func (c *fakeCredential) GetToken(ctx context.Context, opts TokenRequestOptions) (AccessToken, error) {
	atomic.AddInt32(&c.calls, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = opts.Scopes
	if c.err != nil {
		return AccessToken{}, c.err
	}
	return c.token, nil
}

func bearerPipeline(cred TokenCredential, transport Transporter) Pipeline {
	return NewPipeline("test", "0.0.1", PipelineOptions{
		PerRetry: []Policy{NewBearerTokenPolicy(cred, "https://storage.nimbus.cloud/.default")},
	}, &ClientOptions{
		Transport:      transport,
		DisableTracing: true,
		Retry:          RetryOptions{MaxRetries: -1},
	})
}

func sendAuthed(t *testing.T, pl Pipeline) *http.Response {
	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud/op")
	require.NoError(t, err)
	resp, err := pl.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestBearerTokenPolicyAttachesHeader(t *testing.T) {
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(time.Hour)}}
	transport := &mockTransport{}
	pl := bearerPipeline(cred, transport)

	sendAuthed(t, pl)

	require.Len(t, transport.requests, 1)
	assert.Equal(t, "Bearer tok-1", transport.requests[0].Header.Get("Authorization"))
	assert.Equal(t, []string{"https://storage.nimbus.cloud/.default"}, cred.scopes)
}

func TestBearerTokenPolicyCachesToken(t *testing.T) {
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(time.Hour)}}
	transport := &mockTransport{}
	pl := bearerPipeline(cred, transport)

	for i := 0; i < 5; i++ {
		sendAuthed(t, pl)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&cred.calls))
}

func TestBearerTokenPolicyRefreshesExpiredToken(t *testing.T) {
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(-time.Minute)}}
	transport := &mockTransport{}
	pl := bearerPipeline(cred, transport)

	sendAuthed(t, pl)
	cred.mu.Lock()
	cred.token = AccessToken{Token: "tok-2", ExpiresOn: time.Now().Add(time.Hour)}
	cred.mu.Unlock()
	sendAuthed(t, pl)

	// the first token was already expired, so both requests refreshed
	assert.EqualValues(t, 2, atomic.LoadInt32(&cred.calls))
	assert.Equal(t, "Bearer tok-2", transport.requests[1].Header.Get("Authorization"))
}

func TestBearerTokenPolicyUsesStaleTokenWhenRefreshAheadFails(t *testing.T) {
	// expires inside the refresh window but not yet expired
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(30 * time.Second)}}
	transport := &mockTransport{}
	pl := bearerPipeline(cred, transport)

	sendAuthed(t, pl)

	cred.mu.Lock()
	cred.err = errors.New("identity service down")
	cred.mu.Unlock()

	sendAuthed(t, pl)
	assert.Equal(t, "Bearer tok-1", transport.requests[1].Header.Get("Authorization"))
}

func TestBearerTokenPolicyFailsWhenNoTokenAvailable(t *testing.T) {
	cred := &fakeCredential{err: errors.New("identity service down")}
	pl := bearerPipeline(cred, &mockTransport{})

	req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud/op")
	require.NoError(t, err)
	_, err = pl.Do(req)
	assert.ErrorContains(t, err, "acquiring access token")
}

func TestBearerTokenPolicyRequiresTLS(t *testing.T) {
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(time.Hour)}}
	pl := bearerPipeline(cred, &mockTransport{})

	req, err := NewRequest(context.Background(), http.MethodGet, "http://svc.nimbus.cloud/op")
	require.NoError(t, err)
	_, err = pl.Do(req)
	assert.ErrorContains(t, err, "non-TLS")
	assert.Zero(t, atomic.LoadInt32(&cred.calls))
}

func TestBearerTokenPolicyConcurrentRequestsSingleRefresh(t *testing.T) {
	cred := &fakeCredential{token: AccessToken{Token: "tok-1", ExpiresOn: time.Now().Add(time.Hour)}}
	transport := &mockTransport{}
	policy := NewBearerTokenPolicy(cred, "scope")
	pl := NewPipeline("test", "0.0.1", PipelineOptions{
		PerRetry: []Policy{policy},
	}, &ClientOptions{Transport: transport, DisableTracing: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := NewRequest(context.Background(), http.MethodGet, "https://svc.nimbus.cloud/op")
			if err != nil {
				t.Error(err)
				return
			}
			resp, err := pl.Do(req)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&cred.calls))
}

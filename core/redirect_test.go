package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirectPipeline() Pipeline {
	return NewPipeline("test", "0.0.1", PipelineOptions{}, &ClientOptions{
		DisableTracing: true,
		Retry:          RetryOptions{MaxRetries: -1},
	})
}

func TestRedirectPolicyFollowsChain(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/middle", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "made it")
	})

	req, err := NewRequest(context.Background(), http.MethodGet, server.URL+"/start")
	require.NoError(t, err)
	resp, err := redirectPipeline().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "made it", string(body))
}

func TestRedirectPolicyStopsAfterMaxHops(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	req, err := NewRequest(context.Background(), http.MethodGet, server.URL+"/loop")
	require.NoError(t, err)
	_, err = redirectPipeline().Do(req)
	assert.ErrorContains(t, err, "redirects")
}

func TestRedirectPolicySeeOtherConvertsToGet(t *testing.T) {
	var followedMethod string
	var followedBody []byte
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/result", http.StatusSeeOther)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		followedMethod = r.Method
		followedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	req, err := NewRequest(context.Background(), http.MethodPost, server.URL+"/submit")
	require.NoError(t, err)
	require.NoError(t, req.SetBody(NopCloser(bytes.NewReader([]byte("form data"))), "text/plain"))

	resp, err := redirectPipeline().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.MethodGet, followedMethod)
	assert.Empty(t, followedBody)
}

func TestRedirectPolicyDropsAuthorizationCrossHost(t *testing.T) {
	var sameHostAuth, crossHostAuth string

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crossHostAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer other.Close()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/same", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/same", func(w http.ResponseWriter, r *http.Request) {
		sameHostAuth = r.Header.Get("Authorization")
		http.Redirect(w, r, other.URL, http.StatusTemporaryRedirect)
	})

	req, err := NewRequest(context.Background(), http.MethodGet, server.URL+"/start")
	require.NoError(t, err)
	req.Raw().Header.Set("Authorization", "Bearer secret")

	resp, err := redirectPipeline().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer secret", sameHostAuth)
	assert.Empty(t, crossHostAuth)
}

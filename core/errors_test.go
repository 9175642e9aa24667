package core

import (
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

func TestResponseErrorUsesHeaderCode(t *testing.T) {
	resp := mockResponse(http.StatusConflict, `ignored`)
	resp.Header.Set(nimbus.ErrorCodeHeader, "BucketAlreadyExists")

	err := NewResponseError(resp)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "BucketAlreadyExists", respErr.ErrorCode)
	assert.Equal(t, http.StatusConflict, respErr.StatusCode)
}

func TestResponseErrorParsesBodyEnvelope(t *testing.T) {
	resp := mockResponse(http.StatusNotFound, `{"error":{"code":"ObjectNotFound","message":"no such object"}}`)

	err := NewResponseError(resp)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "ObjectNotFound", respErr.ErrorCode)

	// parsing must not consume the body
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.Contains(t, string(body), "ObjectNotFound")
}

func TestResponseErrorMessageIncludesRequestLine(t *testing.T) {
	resp := mockResponse(http.StatusForbidden, "")
	u, _ := url.Parse("https://storage.nimbus.cloud/b/o?sig=secret")
	resp.Request = &http.Request{Method: http.MethodPut, URL: u}
	resp.Header.Set(nimbus.ErrorCodeHeader, "AuthorizationFailure")

	msg := NewResponseError(resp).Error()
	assert.Contains(t, msg, "PUT")
	assert.Contains(t, msg, "403")
	assert.Contains(t, msg, "AuthorizationFailure")
}

func TestHasStatusCode(t *testing.T) {
	assert.False(t, HasStatusCode(nil, http.StatusOK))
	resp := mockResponse(http.StatusAccepted, "")
	assert.True(t, HasStatusCode(resp, http.StatusOK, http.StatusAccepted))
	assert.False(t, HasStatusCode(resp, http.StatusOK, http.StatusCreated))
}

func TestNonRetriableErrorWrapping(t *testing.T) {
	assert.Nil(t, NonRetriableError(nil))

	base := errors.New("broken")
	shielded := NonRetriableError(base)
	assert.True(t, IsNonRetriable(shielded))
	assert.False(t, IsNonRetriable(base))

	wrapped := errors.Wrap(shielded, "outer context")
	assert.True(t, IsNonRetriable(wrapped))
}

func TestPayloadCachesBody(t *testing.T) {
	resp := mockResponse(http.StatusOK, "the payload")

	first, err := Payload(resp)
	require.NoError(t, err)
	second, err := Payload(resp)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	direct, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "the payload", string(direct))
}

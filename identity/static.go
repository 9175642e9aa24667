package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

// StaticTokenCredential hands out a fixed token. Useful for tests and
// for callers that obtain tokens out of band.
type StaticTokenCredential struct {
	token core.AccessToken
}

// NewStaticTokenCredential wraps an existing token. A zero expiry is
// treated as far-future.
func NewStaticTokenCredential(token string, expiresOn time.Time) (*StaticTokenCredential, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	if expiresOn.IsZero() {
		expiresOn = time.Now().Add(24 * 365 * time.Hour)
	}
	return &StaticTokenCredential{token: core.AccessToken{Token: token, ExpiresOn: expiresOn}}, nil
}

// GetToken implements core.TokenCredential.
func (c *StaticTokenCredential) GetToken(ctx context.Context, opts core.TokenRequestOptions) (core.AccessToken, error) {
	if time.Now().After(c.token.ExpiresOn) {
		return core.AccessToken{}, errors.New("static token has expired")
	}
	return c.token, nil
}

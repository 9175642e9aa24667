package core

import (
	"context"
	"time"
)

// AccessToken is a bearer token plus its expiry as reported by the
// identity service.
type AccessToken struct {
	Token     string
	ExpiresOn time.Time
}

// TokenRequestOptions names the scopes a token must cover.
type TokenRequestOptions struct {
	Scopes []string
}

// TokenCredential is implemented by the identity package's credential
// types. It lives here so service clients only depend on core.
type TokenCredential interface {
	GetToken(ctx context.Context, opts TokenRequestOptions) (AccessToken, error)
}

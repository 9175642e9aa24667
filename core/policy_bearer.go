package core

import (
	"net/http"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// tokenRefreshWindow is how far ahead of expiry the policy starts
// refreshing so a token never expires mid-request.
const tokenRefreshWindow = 2 * time.Minute

// BearerTokenPolicy authenticates requests with a TokenCredential,
// caching the token and refreshing it ahead of expiry. Refreshes are
// single-flight: while one request refreshes, requests holding a
// still-valid token keep using it, and requests with no usable token
// wait for the refresh to finish.
type BearerTokenPolicy struct {
	cred   TokenCredential
	scopes []string

	cond       *sync.Cond
	token      AccessToken
	refreshing bool
}

// NewBearerTokenPolicy returns a per-retry policy for the given
// credential and scopes.
func NewBearerTokenPolicy(cred TokenCredential, scopes ...string) *BearerTokenPolicy {
	return &BearerTokenPolicy{
		cred:   cred,
		scopes: scopes,
		cond:   sync.NewCond(&sync.Mutex{}),
	}
}

// Do implements Policy.
func (p *BearerTokenPolicy) Do(req *Request) (*http.Response, error) {
	if req.Raw().URL.Scheme != "https" {
		return nil, errors.New("bearer token authentication is not permitted for non-TLS protected endpoints")
	}

	tk, err := p.getToken(req)
	if err != nil {
		return nil, err
	}
	req.Raw().Header.Set("Authorization", "Bearer "+tk)
	return req.Next()
}

func (p *BearerTokenPolicy) valid() bool {
	return p.token.Token != "" && time.Now().Before(p.token.ExpiresOn)
}

func (p *BearerTokenPolicy) fresh() bool {
	return p.token.Token != "" && time.Now().Before(p.token.ExpiresOn.Add(-tokenRefreshWindow))
}

func (p *BearerTokenPolicy) getToken(req *Request) (string, error) {
	p.cond.L.Lock()
	for {
		if p.fresh() {
			tk := p.token.Token
			p.cond.L.Unlock()
			return tk, nil
		}
		if !p.refreshing {
			break
		}
		if p.valid() {
			// a refresh is in flight but the cached token has not
			// expired yet; no need to wait on it
			tk := p.token.Token
			p.cond.L.Unlock()
			return tk, nil
		}
		p.cond.Wait()
	}
	p.refreshing = true
	hadValid := p.valid()
	stale := p.token.Token
	p.cond.L.Unlock()

	token, err := p.cred.GetToken(req.Raw().Context(), TokenRequestOptions{Scopes: p.scopes})

	p.cond.L.Lock()
	p.refreshing = false
	if err == nil {
		p.token = token
	}
	tk := p.token.Token
	p.cond.Broadcast()
	p.cond.L.Unlock()

	if err != nil {
		if hadValid {
			// refresh-ahead failed but the old token has not expired;
			// log and carry on
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "proactive token refresh failed",
				"scopes":  p.scopes,
			}))
			return stale, nil
		}
		return "", errors.Wrap(err, "acquiring access token")
	}
	return tk, nil
}

package identity

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

const (
	assertionType     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime = 10 * time.Minute
)

// ClientAssertionCredential authenticates a service principal with a
// signed JWT assertion instead of a shared secret.
type ClientAssertionCredential struct {
	tenantID   string
	clientID   string
	key        *rsa.PrivateKey
	tokenURL   string
	httpClient *http.Client
}

// NewClientAssertionCredential builds a credential that signs
// assertions with the given RSA private key.
func NewClientAssertionCredential(tenantID, clientID string, key *rsa.PrivateKey, opts *CredentialOptions) (*ClientAssertionCredential, error) {
	catcher := validateServicePrincipal(tenantID, clientID)
	catcher.NewWhen(key == nil, "private key cannot be nil")
	if catcher.HasErrors() {
		return nil, catcher.Resolve()
	}

	return &ClientAssertionCredential{
		tenantID:   tenantID,
		clientID:   clientID,
		key:        key,
		tokenURL:   tokenURL(opts.endpoint(), tenantID),
		httpClient: core.GetDefaultHTTPRetryableClient(),
	}, nil
}

// NewClientAssertionCredentialFromFile reads a PEM-encoded RSA private
// key from disk.
func NewClientAssertionCredentialFromFile(tenantID, clientID, keyFile string, opts *CredentialOptions) (*ClientAssertionCredential, error) {
	pemBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading private key from '%s'", keyFile)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing private key from '%s'", keyFile)
	}
	return NewClientAssertionCredential(tenantID, clientID, key, opts)
}

// GetToken implements core.TokenCredential.
func (c *ClientAssertionCredential) GetToken(ctx context.Context, opts core.TokenRequestOptions) (core.AccessToken, error) {
	assertion, err := c.signAssertion()
	if err != nil {
		return core.AccessToken{}, err
	}

	form := url.Values{
		"grant_type":            []string{"client_credentials"},
		"client_id":             []string{c.clientID},
		"client_assertion_type": []string{assertionType},
		"client_assertion":      []string{assertion},
		"scope":                 []string{strings.Join(opts.Scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.AccessToken{}, errors.Wrap(err, "building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.AccessToken{}, errors.Wrap(err, "requesting token")
	}
	defer core.Drain(resp)

	if resp.StatusCode != http.StatusOK {
		return core.AccessToken{}, errors.WithStack(core.NewResponseError(resp))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := core.UnmarshalAsJSON(resp, &payload); err != nil {
		return core.AccessToken{}, err
	}
	if payload.AccessToken == "" {
		return core.AccessToken{}, errors.New("token response is missing access_token")
	}
	return core.AccessToken{
		Token:     payload.AccessToken,
		ExpiresOn: time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func (c *ClientAssertionCredential) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.clientID,
		"sub": c.clientID,
		"aud": c.tokenURL,
		"jti": uuid.New().String(),
		"nbf": now.Unix(),
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
	if err != nil {
		return "", errors.Wrap(err, "signing client assertion")
	}
	return signed, nil
}

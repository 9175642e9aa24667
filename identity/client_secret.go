package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

// ClientSecretCredential authenticates a service principal with a
// client secret via the OAuth2 client-credentials flow.
type ClientSecretCredential struct {
	tenantID     string
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

// NewClientSecretCredential builds a credential for the given tenant
// and service principal.
func NewClientSecretCredential(tenantID, clientID, clientSecret string, opts *CredentialOptions) (*ClientSecretCredential, error) {
	catcher := validateServicePrincipal(tenantID, clientID)
	catcher.NewWhen(clientSecret == "", "client secret cannot be empty")
	if catcher.HasErrors() {
		return nil, catcher.Resolve()
	}

	return &ClientSecretCredential{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL(opts.endpoint(), tenantID),
		httpClient:   core.GetDefaultHTTPRetryableClient(),
	}, nil
}

// GetToken implements core.TokenCredential.
func (c *ClientSecretCredential) GetToken(ctx context.Context, opts core.TokenRequestOptions) (core.AccessToken, error) {
	conf := &clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.tokenURL,
		Scopes:       opts.Scopes,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.Token(ctx)
	if err != nil {
		return core.AccessToken{}, errors.Wrapf(err, "requesting token for client '%s'", c.clientID)
	}
	return core.AccessToken{Token: token.AccessToken, ExpiresOn: token.Expiry}, nil
}

func tokenURL(endpoint, tenantID string) string {
	return strings.TrimRight(endpoint, "/") + "/" + tenantID + "/oauth2/token"
}

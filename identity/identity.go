// Package identity provides TokenCredential implementations for the
// Nimbus identity service: static tokens for tests and break-glass
// scenarios, the OAuth2 client-credentials flow for service
// principals, signed JWT client assertions for certificate-based
// principals, plus environment and chained credentials for
// configuration-driven selection.
package identity

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

const (
	tenantIDEnv      = "NIMBUS_TENANT_ID"
	clientIDEnv      = "NIMBUS_CLIENT_ID"
	clientSecretEnv  = "NIMBUS_CLIENT_SECRET"
	clientKeyFileEnv = "NIMBUS_CLIENT_KEY_FILE"
	endpointEnv      = "NIMBUS_IDENTITY_ENDPOINT"
)

// NewEnvironmentCredential builds a credential from environment
// variables: NIMBUS_TENANT_ID and NIMBUS_CLIENT_ID plus either
// NIMBUS_CLIENT_SECRET (client secret flow) or NIMBUS_CLIENT_KEY_FILE
// (client assertion flow). NIMBUS_IDENTITY_ENDPOINT overrides the
// default token endpoint.
func NewEnvironmentCredential() (core.TokenCredential, error) {
	catcher := grip.NewBasicCatcher()

	tenantID := os.Getenv(tenantIDEnv)
	catcher.ErrorfWhen(tenantID == "", "%s is not set", tenantIDEnv)
	clientID := os.Getenv(clientIDEnv)
	catcher.ErrorfWhen(clientID == "", "%s is not set", clientIDEnv)
	if catcher.HasErrors() {
		return nil, errors.Wrap(catcher.Resolve(), "incomplete identity environment")
	}

	opts := &CredentialOptions{IdentityEndpoint: os.Getenv(endpointEnv)}

	if secret := os.Getenv(clientSecretEnv); secret != "" {
		return NewClientSecretCredential(tenantID, clientID, secret, opts)
	}
	if keyFile := os.Getenv(clientKeyFileEnv); keyFile != "" {
		return NewClientAssertionCredentialFromFile(tenantID, clientID, keyFile, opts)
	}
	return nil, errors.Errorf("neither %s nor %s is set", clientSecretEnv, clientKeyFileEnv)
}

// CredentialOptions is shared by the service principal credentials.
type CredentialOptions struct {
	// IdentityEndpoint overrides the default token endpoint, for
	// sovereign or test deployments.
	IdentityEndpoint string
}

func validateServicePrincipal(tenantID, clientID string) grip.Catcher {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(tenantID == "", "tenant ID cannot be empty")
	catcher.NewWhen(clientID == "", "client ID cannot be empty")
	return catcher
}

func (o *CredentialOptions) endpoint() string {
	if o != nil && o.IdentityEndpoint != "" {
		return o.IdentityEndpoint
	}
	return nimbus.DefaultIdentityEndpoint
}

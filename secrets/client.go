// Package secrets provides a client for Nimbus vaults, which store
// named secret values with versioning and soft delete.
package secrets

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

const moduleName = "secrets"

const tokenScope = "https://vault.nimbus.cloud/.default"

// Client talks to a single vault.
type Client struct {
	vaultURL   string
	apiVersion string
	pl         core.Pipeline
}

// NewClient builds a vault client authenticating with a bearer token.
func NewClient(vaultURL string, cred core.TokenCredential, opts *core.ClientOptions) (*Client, error) {
	u, err := url.Parse(vaultURL)
	if err != nil || !u.IsAbs() {
		return nil, errors.Errorf("vault URL '%s' is not an absolute URL", vaultURL)
	}

	apiVersion := nimbus.DefaultAPIVersion
	if opts != nil && opts.APIVersion != "" {
		apiVersion = opts.APIVersion
	}

	pl := core.NewPipeline(moduleName, nimbus.ClientVersion, core.PipelineOptions{
		PerRetry: []core.Policy{core.NewBearerTokenPolicy(cred, tokenScope)},
	}, opts)

	return &Client{vaultURL: vaultURL, apiVersion: apiVersion, pl: pl}, nil
}

// VaultURL returns the vault this client targets.
func (c *Client) VaultURL() string { return c.vaultURL }

func (c *Client) newRequest(ctx context.Context, method string, paths ...string) (*core.Request, error) {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = core.EscapePath(p)
	}
	req, err := core.NewRequest(ctx, method, core.JoinPaths(c.vaultURL, escaped...))
	if err != nil {
		return nil, err
	}
	core.EncodeQueryParams(req, url.Values{"api-version": []string{c.apiVersion}})
	return req, nil
}

// SetSecret stores a new version of the named secret and returns it.
func (c *Client) SetSecret(ctx context.Context, name, value string, opts *SetSecretOptions) (Secret, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "secrets", name)
	if err != nil {
		return Secret{}, err
	}

	body := setSecretRequest{Value: value}
	if opts != nil && opts.ExpiresOn != nil {
		body.Attributes = &SecretAttributes{Enabled: true, ExpiresOn: opts.ExpiresOn}
	}
	if err := core.MarshalAsJSON(req, body); err != nil {
		return Secret{}, err
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return Secret{}, errors.Wrapf(err, "setting secret '%s'", name)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusOK, http.StatusCreated) {
		return Secret{}, core.NewResponseError(resp)
	}

	var secret Secret
	if err := core.UnmarshalAsJSON(resp, &secret); err != nil {
		return Secret{}, err
	}
	return secret, nil
}

// GetSecret fetches a secret's value, latest version unless one is
// given in the options.
func (c *Client) GetSecret(ctx context.Context, name string, opts *GetSecretOptions) (Secret, error) {
	paths := []string{"secrets", name}
	if opts != nil && opts.Version != "" {
		paths = append(paths, opts.Version)
	}
	req, err := c.newRequest(ctx, http.MethodGet, paths...)
	if err != nil {
		return Secret{}, err
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return Secret{}, errors.Wrapf(err, "getting secret '%s'", name)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusOK) {
		return Secret{}, core.NewResponseError(resp)
	}

	var secret Secret
	if err := core.UnmarshalAsJSON(resp, &secret); err != nil {
		return Secret{}, err
	}
	return secret, nil
}

// DeleteSecret begins soft-deleting a secret. The returned poller
// tracks the deletion; its result describes the deleted secret and its
// scheduled purge date.
func (c *Client) DeleteSecret(ctx context.Context, name string, opts *DeleteSecretOptions) (*core.Poller[DeletedSecret], error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "secrets", name)
	if err != nil {
		return nil, err
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "deleting secret '%s'", name)
	}
	if !core.HasStatusCode(resp, http.StatusOK, http.StatusAccepted) {
		defer core.Drain(resp)
		return nil, core.NewResponseError(resp)
	}
	return core.NewPoller[DeletedSecret](resp, c.pl)
}

// PurgeSecret permanently removes a soft-deleted secret. It cannot be
// recovered afterward.
func (c *Client) PurgeSecret(ctx context.Context, name string, opts *PurgeSecretOptions) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "deletedsecrets", name)
	if err != nil {
		return err
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return errors.Wrapf(err, "purging secret '%s'", name)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusNoContent) {
		return core.NewResponseError(resp)
	}
	return nil
}

// BeginRecoverSecret starts restoring a soft-deleted secret. The
// poller's result is the recovered secret.
func (c *Client) BeginRecoverSecret(ctx context.Context, name string, opts *RecoverSecretOptions) (*core.Poller[Secret], error) {
	req, err := c.newRequest(ctx, http.MethodPost, "deletedsecrets", name, "recover")
	if err != nil {
		return nil, err
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "recovering secret '%s'", name)
	}
	if !core.HasStatusCode(resp, http.StatusOK, http.StatusAccepted) {
		defer core.Drain(resp)
		return nil, core.NewResponseError(resp)
	}
	return core.NewPoller[Secret](resp, c.pl)
}

// NewListSecretsPager lists the vault's secrets without their values.
// Continuation follows the nextLink in each page.
func (c *Client) NewListSecretsPager(opts *ListSecretsOptions) *core.Pager[ListSecretsResponse] {
	return core.NewPager(core.PagingHandler[ListSecretsResponse]{
		More: func(page ListSecretsResponse) bool {
			return page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *ListSecretsResponse) (ListSecretsResponse, error) {
			var req *core.Request
			var err error
			if current == nil {
				req, err = c.newRequest(ctx, http.MethodGet, "secrets")
			} else {
				req, err = core.NewRequest(ctx, http.MethodGet, current.NextLink)
			}
			if err != nil {
				return ListSecretsResponse{}, err
			}

			resp, err := c.pl.Do(req)
			if err != nil {
				return ListSecretsResponse{}, errors.Wrap(err, "listing secrets")
			}
			defer core.Drain(resp)
			if !core.HasStatusCode(resp, http.StatusOK) {
				return ListSecretsResponse{}, core.NewResponseError(resp)
			}

			var page ListSecretsResponse
			if err := core.UnmarshalAsJSON(resp, &page); err != nil {
				return ListSecretsResponse{}, err
			}
			return page, nil
		},
	})
}

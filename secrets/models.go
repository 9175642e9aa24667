package secrets

import "time"

// SecretAttributes carry the lifecycle metadata of a secret version.
type SecretAttributes struct {
	Enabled   bool       `json:"enabled"`
	CreatedOn time.Time  `json:"createdOn"`
	UpdatedOn time.Time  `json:"updatedOn"`
	ExpiresOn *time.Time `json:"expiresOn,omitempty"`
}

// Secret is a named value stored in a vault. Version identifies one
// immutable revision of the value.
type Secret struct {
	Name       string           `json:"name"`
	Value      string           `json:"value"`
	Version    string           `json:"version"`
	Attributes SecretAttributes `json:"attributes"`
}

// SecretItem is a listing entry. It omits the value.
type SecretItem struct {
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	Attributes SecretAttributes `json:"attributes"`
}

// DeletedSecret describes a soft-deleted secret awaiting purge or
// recovery.
type DeletedSecret struct {
	Name               string     `json:"name"`
	RecoveryID         string     `json:"recoveryId"`
	DeletedOn          time.Time  `json:"deletedOn"`
	ScheduledPurgeDate *time.Time `json:"scheduledPurgeDate,omitempty"`
}

type SetSecretOptions struct {
	// ExpiresOn marks the version as expiring at the given time.
	ExpiresOn *time.Time
}

type GetSecretOptions struct {
	// Version selects a specific revision; empty means latest.
	Version string
}

type DeleteSecretOptions struct{}

type PurgeSecretOptions struct{}

type RecoverSecretOptions struct{}

type ListSecretsOptions struct{}

// ListSecretsResponse is one page of a vault's secret listing.
type ListSecretsResponse struct {
	Secrets  []SecretItem `json:"secrets"`
	NextLink string       `json:"nextLink"`
}

type setSecretRequest struct {
	Value      string            `json:"value"`
	Attributes *SecretAttributes `json:"attributes,omitempty"`
}

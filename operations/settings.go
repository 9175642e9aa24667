// Package operations holds the command constructors for the nimbus
// CLI. Each exported function returns one top-level cli.Command.
package operations

import (
	"os"
	"path/filepath"

	"github.com/kardianos/osext"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/core"
	"github.com/nimbuscloud/nimbus-go-sdk/identity"
	"github.com/nimbuscloud/nimbus-go-sdk/secrets"
	"github.com/nimbuscloud/nimbus-go-sdk/storage"
)

// ClientSettings is the data stored in the user's config file, by
// default located at ~/.nimbus.yml.
type ClientSettings struct {
	IdentityEndpoint string `json:"identity_endpoint" yaml:"identity_endpoint,omitempty"`
	TenantID         string `json:"tenant_id" yaml:"tenant_id,omitempty"`
	ClientID         string `json:"client_id" yaml:"client_id,omitempty"`
	ClientSecret     string `json:"client_secret" yaml:"client_secret,omitempty"`

	StorageEndpoint string `json:"storage_endpoint" yaml:"storage_endpoint,omitempty"`
	StorageAccount  string `json:"storage_account" yaml:"storage_account,omitempty"`
	StorageKey      string `json:"storage_key" yaml:"storage_key,omitempty"`

	VaultURL string `json:"vault_url" yaml:"vault_url,omitempty"`

	LoadedFrom string `json:"-" yaml:"-"`
}

func findConfigFilePath(fn string) (string, error) {
	currentBinPath, _ := osext.Executable()

	userHome, err := homedir.Dir()
	if err != nil && len(os.Getenv("HOME")) > 0 {
		userHome = os.Getenv("HOME")
	}

	if fn != "" {
		if isValidPath(fn) {
			return fn, nil
		}
		absfn, _ := filepath.Abs(fn)
		if isValidPath(absfn) {
			return absfn, nil
		}
	}
	defaultFiles := []string{
		filepath.Join(userHome, nimbus.DefaultConfigFile),
		filepath.Join(filepath.Dir(currentBinPath), nimbus.DefaultConfigFile),
	}
	for _, path := range defaultFiles {
		if isValidPath(path) {
			grip.WarningWhen(fn != "", "couldn't find the specified configuration file, falling back on the default")
			return path, nil
		}
	}

	return "", errors.New("could not find a client configuration file on the local system; run 'nimbus login' first")
}

func isValidPath(path string) bool {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) || stat.IsDir() {
		return false
	}
	return true
}

// NewClientSettings loads settings from fn, falling back on the
// default config locations when fn is empty.
func NewClientSettings(fn string) (*ClientSettings, error) {
	path, err := findConfigFilePath(fn)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration from file '%s'", path)
	}

	conf := &ClientSettings{}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "reading YAML data from configuration file '%s'", path)
	}
	conf.LoadedFrom = path
	return conf, nil
}

// Write persists the settings to fn, or back to the file they were
// loaded from when fn is empty.
func (s *ClientSettings) Write(fn string) error {
	if fn == "" {
		if s.LoadedFrom == "" {
			userHome, err := homedir.Dir()
			if err != nil {
				return errors.Wrap(err, "finding home directory")
			}
			fn = filepath.Join(userHome, nimbus.DefaultConfigFile)
		} else {
			fn = s.LoadedFrom
		}
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshalling settings")
	}

	return errors.Wrapf(os.WriteFile(fn, data, 0600), "writing settings to file '%s'", fn)
}

func (s *ClientSettings) credential() (core.TokenCredential, error) {
	var sources []core.TokenCredential

	if env, err := identity.NewEnvironmentCredential(); err == nil {
		sources = append(sources, env)
	}
	if s.TenantID != "" && s.ClientID != "" && s.ClientSecret != "" {
		opts := &identity.CredentialOptions{IdentityEndpoint: s.IdentityEndpoint}
		cred, err := identity.NewClientSecretCredential(s.TenantID, s.ClientID, s.ClientSecret, opts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, cred)
	}

	if len(sources) == 0 {
		return nil, errors.New("no credentials are configured; run 'nimbus login' or set the NIMBUS_* environment variables")
	}
	return identity.NewChainedTokenCredential(sources...)
}

func (s *ClientSettings) storageClient() (*storage.Client, error) {
	if s.StorageEndpoint == "" {
		return nil, errors.New("no storage endpoint is configured")
	}

	if s.StorageAccount != "" && s.StorageKey != "" {
		cred, err := storage.NewSharedKeyCredential(s.StorageAccount, s.StorageKey)
		if err != nil {
			return nil, errors.Wrap(err, "building shared key credential")
		}
		return storage.NewClientWithSharedKey(s.StorageEndpoint, cred, nil)
	}

	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	return storage.NewClient(s.StorageEndpoint, cred, nil)
}

func (s *ClientSettings) secretsClient() (*secrets.Client, error) {
	if s.VaultURL == "" {
		return nil, errors.New("no vault URL is configured")
	}

	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	return secrets.NewClient(s.VaultURL, cred, nil)
}

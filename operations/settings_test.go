package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestSettings(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "nimbus.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearCredentialEnv(t *testing.T) {
	for _, name := range []string{"NIMBUS_TENANT_ID", "NIMBUS_CLIENT_ID", "NIMBUS_CLIENT_SECRET", "NIMBUS_CLIENT_KEY_FILE"} {
		t.Setenv(name, "")
	}
}

func TestNewClientSettings(t *testing.T) {
	path := writeTestSettings(t, `
identity_endpoint: https://login.example.com
tenant_id: tenant-1
client_id: client-1
storage_endpoint: https://acct.storage.example.com
vault_url: https://vault.example.com
`)

	settings, err := NewClientSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com", settings.IdentityEndpoint)
	assert.Equal(t, "tenant-1", settings.TenantID)
	assert.Equal(t, "https://acct.storage.example.com", settings.StorageEndpoint)
	assert.Equal(t, path, settings.LoadedFrom)
}

func TestNewClientSettingsMissingFile(t *testing.T) {
	_, err := NewClientSettings(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	assert.Error(t, err)
}

func TestClientSettingsWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nimbus.yml")
	settings := &ClientSettings{
		TenantID:        "tenant-1",
		ClientID:        "client-1",
		ClientSecret:    "hunter2",
		StorageEndpoint: "https://acct.storage.example.com",
	}
	require.NoError(t, settings.Write(path))

	loaded, err := NewClientSettings(path)
	require.NoError(t, err)
	assert.Equal(t, settings.TenantID, loaded.TenantID)
	assert.Equal(t, settings.ClientSecret, loaded.ClientSecret)
	assert.Equal(t, settings.StorageEndpoint, loaded.StorageEndpoint)
}

func TestClientSettingsWriteBackToLoadedFrom(t *testing.T) {
	path := writeTestSettings(t, "tenant_id: tenant-1\n")

	settings, err := NewClientSettings(path)
	require.NoError(t, err)
	settings.ClientID = "client-2"
	require.NoError(t, settings.Write(""))

	loaded, err := NewClientSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "client-2", loaded.ClientID)
}

func TestCredentialRequiresConfiguration(t *testing.T) {
	clearCredentialEnv(t)

	settings := &ClientSettings{}
	_, err := settings.credential()
	assert.Error(t, err)
}

func TestCredentialFromSettings(t *testing.T) {
	clearCredentialEnv(t)

	settings := &ClientSettings{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "hunter2",
	}
	cred, err := settings.credential()
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestStorageClientFromSettings(t *testing.T) {
	clearCredentialEnv(t)

	settings := &ClientSettings{}
	_, err := settings.storageClient()
	assert.Error(t, err, "no endpoint configured")

	settings.StorageEndpoint = "https://acct.storage.example.com"
	settings.StorageAccount = "acct"
	settings.StorageKey = "MDEyMzQ1Njc4OWFiY2RlZg=="
	client, err := settings.storageClient()
	require.NoError(t, err)
	assert.Equal(t, "https://acct.storage.example.com", client.Endpoint())
}

func TestSecretsClientFromSettings(t *testing.T) {
	clearCredentialEnv(t)

	settings := &ClientSettings{}
	_, err := settings.secretsClient()
	assert.Error(t, err)

	settings.VaultURL = "https://vault.example.com"
	settings.TenantID = "tenant-1"
	settings.ClientID = "client-1"
	settings.ClientSecret = "hunter2"
	client, err := settings.secretsClient()
	require.NoError(t, err)
	assert.Equal(t, "https://vault.example.com", client.VaultURL())
}

func TestFindConfigFilePathPrefersExplicit(t *testing.T) {
	path := writeTestSettings(t, "tenant_id: t\n")

	found, err := findConfigFilePath(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestParseRemotePath(t *testing.T) {
	remote, err := parseRemotePath("nim://logs/2026/app.log")
	require.NoError(t, err)
	assert.Equal(t, "logs", remote.bucket)
	assert.Equal(t, "2026/app.log", remote.key)

	remote, err = parseRemotePath("nim://logs")
	require.NoError(t, err)
	assert.Equal(t, "logs", remote.bucket)
	assert.Empty(t, remote.key)

	_, err = parseRemotePath("/tmp/file")
	assert.Error(t, err)
	_, err = parseRemotePath("nim://")
	assert.Error(t, err)

	assert.True(t, isRemotePath("nim://a/b"))
	assert.False(t, isRemotePath("a/b"))
}

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/client"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, "version: \"0.1.0\"\nserver_url: https://console.example.com\ntimeout_ms: 5000\n")

	require.NoError(t, LoadConfig(path))

	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "https://console.example.com", cfg.GetServerURL())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadConfigDefaultsTimeout(t *testing.T) {
	path := writeConfigFile(t, "server_url: https://console.example.com\n")

	require.NoError(t, LoadConfig(path))
	assert.Equal(t, client.DefaultRequestTimeout, GetConfig().Timeout())
}

func TestLoadConfigAddsScheme(t *testing.T) {
	path := writeConfigFile(t, "server_url: console.example.com\n")

	require.NoError(t, LoadConfig(path))
	assert.Equal(t, "https://console.example.com", GetConfig().GetServerURL())
}

func TestLoadConfigMissingServer(t *testing.T) {
	path := writeConfigFile(t, "version: \"0.1.0\"\n")

	err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfigFile(t, "server_url: https://console.example.com\ntimeout_ms: 5000\n")

	t.Setenv(envServerURL, "https://other.example.com")
	t.Setenv(envTimeoutMS, "250")

	require.NoError(t, LoadConfig(path))
	assert.Equal(t, "https://other.example.com", GetConfig().GetServerURL())
	assert.Equal(t, 250*time.Millisecond, GetConfig().Timeout())
}

func TestMorphServer(t *testing.T) {
	assert.Equal(t, "", MorphServer(""))
	assert.Equal(t, "https://a.example.com", MorphServer("a.example.com/"))
	assert.Equal(t, "http://a.example.com:8080", MorphServer("http://a.example.com:8080"))
}

func TestWriteConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{Version: "0.1.0", ServerURL: "https://console.example.com", TimeoutMillis: 1500}

	require.NoError(t, cfg.WriteConfig(path))
	require.NoError(t, LoadConfig(path))
	assert.Equal(t, 1500, GetConfig().TimeoutMillis)
}

func TestValidateResourceKind(t *testing.T) {
	assert.True(t, ValidateResourceKind(KindTopics))
	assert.True(t, ValidateResourceKind(KindUsers))
	assert.False(t, ValidateResourceKind("widgets"))
}

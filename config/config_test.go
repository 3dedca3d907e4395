package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("INTENTGW_PORT", "9090")
	t.Setenv("INTENTGW_DAILY_LIMIT", "50")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, 50, c.RateLimit.DailyLimit)
}

func TestOptionsOverrideEnv(t *testing.T) {
	t.Setenv("INTENTGW_PORT", "9090")

	c, err := Load(WithPort(7070))
	require.NoError(t, err)
	assert.Equal(t, 7070, c.Port)
}

func TestWithFileMergesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: 6060\nauth:\n  shared_secret: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(WithFile(path))
	require.NoError(t, err)
	assert.Equal(t, 6060, c.Port)
	assert.Equal(t, "from-file", c.Auth.SharedSecret)
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := Default()
	c.Port = 0
	assert.Error(t, c.Validate())
}

func TestWithServiceURL(t *testing.T) {
	c, err := Load(WithServiceURL("UserService", "http://user-svc:8080"))
	require.NoError(t, err)
	assert.Equal(t, "http://user-svc:8080", c.ServiceDiscovery.ServiceURLs["UserService"])
}

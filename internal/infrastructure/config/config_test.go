package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8070", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "/tmp/plugstore", cfg.Storage.Root)
	assert.Equal(t, 16*1024*1024, cfg.Storage.MaxRecordSize)
	assert.True(t, cfg.Storage.Compression)
	assert.Equal(t, 256, cfg.Storage.QueueSize)

	assert.Equal(t, 3*time.Second, cfg.Shutdown.Timeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"STORAGE_ROOT":        "/var/lib/plugstore",
		"STORAGE_COMPRESSION": "false",
		"SHUTDOWN_TIMEOUT":    "750ms",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RATE_LIMIT_RPS":      "500",
		"BREAKER_FAILURES":    "9",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "/var/lib/plugstore", cfg.Storage.Root)
	assert.False(t, cfg.Storage.Compression)
	assert.Equal(t, 750*time.Millisecond, cfg.Shutdown.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, uint32(9), cfg.Breaker.ConsecutiveFailures)

	// untouched values keep defaults
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.Equal(t, 256, cfg.Storage.QueueSize)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugstore.yaml")
	content := `
storage:
  root: /srv/plugstore
  fsync: true
shutdown:
  timeout: 5s
plugin:
  voucher: test voucher
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/plugstore", cfg.Storage.Root)
	assert.True(t, cfg.Storage.Fsync)
	assert.True(t, cfg.Storage.Compression)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, "test voucher", cfg.Plugin.Voucher)
}

func TestLoadTOMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugstore.toml")
	content := `
[storage]
root = "/srv/from-file"
queue_size = 32

[breaker]
open_timeout = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORAGE_ROOT", "/srv/from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/from-env", cfg.Storage.Root)
	assert.Equal(t, 32, cfg.Storage.QueueSize)
	assert.Equal(t, time.Minute, cfg.Breaker.OpenTimeout)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugstore.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "0s")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 3*time.Second, cfg.Shutdown.Timeout)
}

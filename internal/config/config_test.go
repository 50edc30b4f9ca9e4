package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: testapp
  environment: test
database:
  path: /tmp/test.db
api:
  enabled: true
  port: 9000
sync:
  interval: 15m
  fetch_timeout: 10s
  failure_threshold: 0.75
  stale_retention_days: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "testapp", cfg.App.Name)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval.Std())
	assert.Equal(t, 10*time.Second, cfg.Sync.FetchTimeout.Std())
	assert.Equal(t, 0.75, cfg.Sync.FailureThreshold)
	assert.Equal(t, 30, cfg.Sync.StaleRetentionDays)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "villasole", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval.Std())
	assert.Equal(t, 10*time.Second, cfg.Sync.InitialDelay.Std())
	assert.Equal(t, 0.5, cfg.Sync.FailureThreshold)
	assert.Equal(t, 6*time.Hour, cfg.Sync.ConsistencyInterval.Std())
	assert.Equal(t, 24*time.Hour, cfg.Sync.CleanupInterval.Std())
	assert.Equal(t, 90, cfg.Sync.StaleRetentionDays)
	assert.Equal(t, 48*time.Hour, cfg.Sync.SnapshotTTL.Std())
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/expanded.db")
	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
sync:
  interval: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate(t *testing.T) {
	t.Run("MissingDatabasePath", func(t *testing.T) {
		path := writeConfig(t, `
app:
  name: testapp
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database path is required")
	})

	t.Run("FailureThresholdOutOfRange", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/test.db
sync:
  failure_threshold: 1.5
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failure_threshold")
	})

	t.Run("AuthEnabledWithoutKeys", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/test.db
api:
  enabled: true
  auth:
    enabled: true
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_keys")
	})
}

func TestAPIKeyPermissions(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: secret-admin
        name: owner
        permissions: ["admin"]
      - key: secret-widget
        name: widget
        permissions: ["read:availability", "write:bookings"]
  rate_limit:
    rps: 10
    burst: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.API.Auth.APIKeys, 2)
	assert.Equal(t, []string{"admin"}, cfg.API.Auth.APIKeys[0].Permissions)
	assert.Equal(t, "widget", cfg.API.Auth.APIKeys[1].Name)
	assert.Equal(t, 10.0, cfg.API.RateLimit.RPS)
	assert.Equal(t, 20, cfg.API.RateLimit.Burst)
}

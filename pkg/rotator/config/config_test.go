package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxy-rotator/pkg/rotator/core/retry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
rotator:
  ewmaAlpha: 0.2
  strategy:
    name: session
    underlying: weighted
    sessionTTL: 10m
  retry:
    maxAttempts: 5
    backoff: fibonacci
    baseDelay: 50ms
  breaker:
    failureThreshold: 4
    recoveryTimeout: 15s
endpoints:
  - host: 10.0.0.1
    port: 8080
    protocol: http
  - host: 10.0.0.2
    port: 1080
    protocol: socks5
    country: US
storage:
  type: sqlite
  path: /tmp/rotator.db
  snapshotInterval: 30s
api:
  addr: :8080
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Rotator)
	assert.InDelta(t, 0.2, cfg.Rotator.EWMAAlpha, 1e-9)
	assert.Equal(t, "session", cfg.Rotator.Strategy.Name)
	assert.Equal(t, "weighted", cfg.Rotator.Strategy.Underlying)
	assert.Equal(t, 10*time.Minute, cfg.Rotator.Strategy.SessionTTL)
	assert.Equal(t, 5, cfg.Rotator.Retry.MaxAttempts)
	assert.Equal(t, retry.BackoffFibonacci, cfg.Rotator.Retry.Backoff)
	assert.Equal(t, 4, cfg.Rotator.Breaker.FailureThreshold)

	require.Len(t, cfg.Endpoints, 2)
	assert.Equal(t, "10.0.0.2:1080", cfg.Endpoints[1].Addr())
	assert.Equal(t, "US", cfg.Endpoints[1].Country)

	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 30*time.Second, cfg.Storage.SnapshotInterval)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Nil(t, cfg.Etcd)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("PROXY_PASSWORD", "secret")
	path := writeConfig(t, `
endpoints:
  - host: 10.0.0.1
    port: 8080
    protocol: http
    username: user
    password: ${PROXY_PASSWORD}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, "secret", cfg.Endpoints[0].Password)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/no/such/config.yaml")
	assert.Error(t, err)
}

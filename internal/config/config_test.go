package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_File(t *testing.T) {
	unsetEnv(t, "JWT_SECRET")

	path := writeConfig(t, `
log-level: debug
http:
  addr: ":9090"
sqlite:
  path: /tmp/games.db
redis:
  addr: redis:6379
  db: 2
jwt:
  secret: s3cret
  ttl: 1h
rate-limit:
  max: 10
  window: 1m
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/games.db", cfg.SQLite.Path)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, int64(10), cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	// defaults
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.HTTP.TLSEnabled())
}

func TestLoad_EnvOnlyWhenFileMissing(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, int64(5), cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: file-secret\n")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "Missing secret", body: "log-level: info\n"},
		{name: "Half TLS", body: "jwt:\n  secret: x\nhttp:\n  tls-cert: cert.pem\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, "JWT_SECRET")
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	unsetEnv(t, "JWT_SECRET")

	cfg, err := Read(writeConfig(t, "sqlite:\n  path: ./offline.db\n"))

	require.NoError(t, err)
	assert.Equal(t, "./offline.db", cfg.SQLite.Path)
	assert.Empty(t, cfg.JWT.Secret)
}

func TestMustLoad_Panics(t *testing.T) {
	unsetEnv(t, "JWT_SECRET")
	assert.Panics(t, func() { MustLoad("") })
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Store.MaxWriteAttempts)
	assert.Equal(t, "x-auth-token", cfg.Auth.TokenHeader)
	assert.Equal(t, "https://api.brevo.com/v3/smtp/email", cfg.Email.APIURL)
	assert.Equal(t, "https://api.qrserver.com/v1/create-qr-code/", cfg.Payment.QREndpoint)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_BREVO_KEY", "xkeysib-123")
	t.Setenv("TEST_VPA", "organiser@okhdfc")

	cfg, err := Parse([]byte("email:\n  api_key: ${TEST_BREVO_KEY}\npayment:\n  fallback_vpa: ${TEST_VPA}\n"))
	require.NoError(t, err)

	assert.Equal(t, "xkeysib-123", cfg.Email.APIKey)
	assert.Equal(t, "organiser@okhdfc", cfg.Payment.FallbackVPA)
}

func TestParseEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/turfwar")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse([]byte("log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/turfwar", cfg.Postgres.ConnectionString())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConnectionStringFromFields(t *testing.T) {
	c := PostgresConfig{User: "turf", Password: "war", Host: "db", Port: 5433, Database: "matches"}
	assert.Equal(t, "postgres://turf:war@db:5433/matches?sslmode=disable", c.ConnectionString())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\ncache:\n  enabled: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

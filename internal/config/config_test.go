package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "API_PORT", "LOG_LEVEL", "ADMIN_ADDRESS",
		"RETRY_ENABLED", "RETRY_MAX_RETRIES", "RETRY_INITIAL_DELAY_SEC", "RETRY_MAX_DELAY_SEC"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	admin := keypair.MustRandom().Address()
	t.Setenv("DATABASE_URL", "postgres://localhost/griefing")
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ADMIN_ADDRESS", admin)
	t.Setenv("RETRY_ENABLED", "false")
	t.Setenv("RETRY_MAX_RETRIES", "not-a-number")
	t.Setenv("RETRY_INITIAL_DELAY_SEC", "2")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://localhost/griefing", cfg.DatabaseURL)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, admin, cfg.AdminAddress)
	assert.False(t, cfg.Retry.Enabled)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{APIPort: 8080, LogLevel: "info"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.APIPort = 0 }},
		{"port too large", func(c *Config) { c.APIPort = 70000 }},
		{"unknown level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad admin", func(c *Config) { c.AdminAddress = "not-an-address" }},
		{"negative retries", func(c *Config) { c.Retry.Enabled, c.Retry.MaxRetries = true, -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, valid().Validate())
}

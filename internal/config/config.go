package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"griefing/internal/address"
	"griefing/internal/retry"
)

type Config struct {
	// PostgreSQL connection string ( empty means in-memory storage )
	DatabaseURL string

	// Port for the read-only HTTP API
	APIPort int

	// debug, info, warn or error
	LogLevel string

	// Registry administrator ( G... or C... strkey )
	AdminAddress string

	// Retry policy for repository writes
	Retry retry.Config
}

// Load reads configuration from the environment.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	defaults := retry.DefaultConfig()
	return &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		APIPort:      getEnvAsInt("API_PORT", 8080),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AdminAddress: os.Getenv("ADMIN_ADDRESS"),
		Retry: retry.Config{
			Enabled:      getEnvAsBool("RETRY_ENABLED", defaults.Enabled),
			MaxRetries:   getEnvAsInt("RETRY_MAX_RETRIES", defaults.MaxRetries),
			InitialDelay: time.Duration(getEnvAsInt("RETRY_INITIAL_DELAY_SEC", int(defaults.InitialDelay/time.Second))) * time.Second,
			MaxDelay:     time.Duration(getEnvAsInt("RETRY_MAX_DELAY_SEC", int(defaults.MaxDelay/time.Second))) * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	if c.AdminAddress != "" {
		if _, err := address.Parse(c.AdminAddress); err != nil {
			return fmt.Errorf("invalid ADMIN_ADDRESS: %w", err)
		}
	}
	if c.Retry.Enabled && c.Retry.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX_RETRIES must not be negative")
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level, info when unknown
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean or returns default
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"griefing/internal/config"
	"griefing/internal/storage"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "griefing",
	Short: "One-way griefing agreements with a factory and registry",
	Long:  "Runs the agreement API, applies the database schema, or walks an agreement through its lifecycle.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
		slog.SetDefault(logger)

		slog.Debug("Configuration loaded",
			"api_port", cfg.APIPort,
			"log_level", cfg.LogLevel,
			"postgres", cfg.DatabaseURL != "",
			"retry_enabled", cfg.Retry.Enabled,
		)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRepository connects to Postgres when DATABASE_URL is set and falls
// back to in-memory storage otherwise
func openRepository(ctx context.Context) (storage.Repository, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory storage")
		return storage.NewMemoryRepository(), nil
	}

	repository, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("Database connected successfully")
	return repository, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"griefing/internal/api"
	"griefing/internal/griefing"
	"griefing/internal/retry"
	"griefing/internal/token"
)

var serveSeed bool

func init() {
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Run the demo agreement once before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only agreement API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		repository, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer repository.Close()

		if serveSeed {
			result, err := runDemo(ctx, repository, demoOptions{
				Ratio:     griefing.MustParseRatio("2"),
				Countdown: 24 * time.Hour,
				Stake:     token.Units(100),
				Punish:    token.Units(10),
				Retry:     retry.NewStrategy(cfg.Retry),
			})
			if err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			slog.Info("Seeded demo agreement", "agreement_id", result.Agreement.AgreementID)
		}

		server := api.NewServer(cfg.APIPort, repository)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}

		// Listen for interrupt signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			slog.Warn("Interrupt received, shutting down...")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error stopping API server", "error", err)
		}

		slog.Info("Server stopped")
		return nil
	},
}

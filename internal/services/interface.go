package services

import (
	"context"
	"log/slog"
	"time"

	"griefing/internal/metrics"
	"griefing/internal/models"
	"griefing/internal/retry"
)

// Service defines the interface that all specialized services must implement
type Service interface {
	// Process handles a single event.
	// Returning an error marks this service as failed for the event; the
	// orchestrator still runs the remaining services.
	Process(ctx context.Context, ev *models.Event) error

	// Name returns the service name for logging
	Name() string
}

// persist runs a repository write through the retry strategy and records
// its latency and failures under the service name
func persist(ctx context.Context, service string, strategy retry.Strategy, op retry.Operation) error {
	start := time.Now()
	err := strategy.Execute(ctx, op)
	metrics.RepositoryWriteDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(service).Inc()
		slog.Error("Repository write failed",
			"service", service,
			"strategy", strategy.Name(),
			"error", err,
		)
	}
	return err
}

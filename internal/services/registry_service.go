package services

import (
	"context"
	"log/slog"

	"griefing/internal/models"
	"griefing/internal/retry"
	"griefing/internal/storage"
)

// RegistryService stores factory authorizations and instance provenance
type RegistryService struct {
	repository storage.Repository
	retry      retry.Strategy
}

// NewRegistryService creates a new RegistryService instance
func NewRegistryService(repository storage.Repository, strategy retry.Strategy) *RegistryService {
	return &RegistryService{
		repository: repository,
		retry:      strategy,
	}
}

// Process handles registry events; agreement events are skipped
func (s *RegistryService) Process(ctx context.Context, ev *models.Event) error {
	switch {
	case ev.Factory != nil:
		f := ev.Factory
		if err := persist(ctx, s.Name(), s.retry, func() error {
			return s.repository.SaveFactory(ctx, f)
		}); err != nil {
			return err
		}
		slog.Info("RegistryService: Factory saved",
			"factory_id", f.FactoryID,
			"status", f.Status,
		)

	case ev.Instance != nil:
		rec := ev.Instance
		if err := persist(ctx, s.Name(), s.retry, func() error {
			return s.repository.SaveInstance(ctx, rec)
		}); err != nil {
			return err
		}
		slog.Info("RegistryService: Instance provenance saved",
			"instance_id", rec.InstanceID,
			"factory_id", rec.FactoryID,
			"index", rec.Index,
		)
	}
	return nil
}

// Name returns the service name
func (s *RegistryService) Name() string {
	return "RegistryService"
}

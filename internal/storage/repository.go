package storage

import (
	"context"
	"errors"

	"griefing/internal/models"
)

// ErrNotFound is returned by single-record lookups
var ErrNotFound = errors.New("not found")

// Repository defines the interface for all storage operations
type Repository interface {
	// Agreements. SaveAgreement keeps the stored snapshot with the highest
	// sequence, so replaying older snapshots is harmless.
	SaveAgreement(ctx context.Context, agreement *models.Agreement) error
	GetAgreement(ctx context.Context, agreementID string) (*models.Agreement, error)
	ListAgreements(ctx context.Context, filter models.AgreementFilter) ([]*models.Agreement, error)
	CountAgreements(ctx context.Context, filter models.AgreementFilter) (int, error)

	// Events. Saving an event ID twice is a no-op.
	SaveEvents(ctx context.Context, events []models.Event) error
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)

	// Registry
	SaveFactory(ctx context.Context, factory *models.Factory) error
	ListFactories(ctx context.Context) ([]*models.Factory, error)
	SaveInstance(ctx context.Context, instance *models.InstanceRecord) error
	GetInstance(ctx context.Context, instanceID string) (*models.InstanceRecord, error)

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}

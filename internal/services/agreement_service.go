package services

import (
	"context"
	"log/slog"
	"sync"

	"griefing/internal/models"
	"griefing/internal/retry"
	"griefing/internal/storage"
)

// AgreementService keeps the stored snapshot of each agreement current
type AgreementService struct {
	repository storage.Repository
	retry      retry.Strategy

	mu      sync.RWMutex
	tracked map[string]bool // agreements seen since start
}

// NewAgreementService creates a new AgreementService instance
func NewAgreementService(repository storage.Repository, strategy retry.Strategy) *AgreementService {
	return &AgreementService{
		repository: repository,
		retry:      strategy,
		tracked:    make(map[string]bool),
	}
}

// Process saves the post-event snapshot carried by agreement events
func (s *AgreementService) Process(ctx context.Context, ev *models.Event) error {
	if ev.Agreement == nil {
		return nil // registry event
	}

	snap := ev.Agreement
	err := persist(ctx, s.Name(), s.retry, func() error {
		return s.repository.SaveAgreement(ctx, snap)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	isNew := !s.tracked[snap.AgreementID]
	s.tracked[snap.AgreementID] = true
	s.mu.Unlock()

	if isNew {
		slog.Info("AgreementService: Tracking agreement",
			"agreement_id", snap.AgreementID,
			"factory_id", snap.FactoryID,
			"staker", snap.Staker,
			"counterparty", snap.Counterparty,
		)
	}
	return nil
}

// Name returns the service name
func (s *AgreementService) Name() string {
	return "AgreementService"
}

// TrackedCount returns the number of agreements seen since start
func (s *AgreementService) TrackedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracked)
}

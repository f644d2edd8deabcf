package services

import (
	"context"
	"log/slog"

	"griefing/internal/metrics"
	"griefing/internal/models"
	"griefing/internal/retry"
	"griefing/internal/storage"
)

// EventService appends every event to the event log
type EventService struct {
	repository storage.Repository
	retry      retry.Strategy
}

// NewEventService creates a new EventService instance
func NewEventService(repository storage.Repository, strategy retry.Strategy) *EventService {
	return &EventService{
		repository: repository,
		retry:      strategy,
	}
}

// Process saves the event
func (s *EventService) Process(ctx context.Context, ev *models.Event) error {
	err := persist(ctx, s.Name(), s.retry, func() error {
		return s.repository.SaveEvents(ctx, []models.Event{*ev})
	})
	if err != nil {
		return err
	}

	metrics.EventsSaved.Inc()
	slog.Debug("EventService: Event saved",
		"source_id", ev.SourceID,
		"event_type", ev.EventType,
		"sequence", ev.Sequence,
	)
	return nil
}

// Name returns the service name
func (s *EventService) Name() string {
	return "EventService"
}

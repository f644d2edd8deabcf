package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"griefing/internal/models"
)

// MemoryRepository is a Repository kept in process memory. It is used when
// no database is configured and by tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	agreements map[string]*models.Agreement
	events     []models.Event
	eventIDs   map[string]struct{}
	eventSeqs  map[eventKey]struct{}
	factories  map[string]*models.Factory
	instances  map[string]*models.InstanceRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		agreements: make(map[string]*models.Agreement),
		eventIDs:   make(map[string]struct{}),
		eventSeqs:  make(map[eventKey]struct{}),
		factories:  make(map[string]*models.Factory),
		instances:  make(map[string]*models.InstanceRecord),
	}
}

func (r *MemoryRepository) SaveAgreement(ctx context.Context, a *models.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.agreements[a.AgreementID]; ok && cur.Sequence >= a.Sequence {
		return nil
	}
	c := *a
	r.agreements[a.AgreementID] = &c
	return nil
}

func (r *MemoryRepository) GetAgreement(ctx context.Context, agreementID string) (*models.Agreement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agreements[agreementID]
	if !ok {
		return nil, fmt.Errorf("agreement %s: %w", agreementID, ErrNotFound)
	}
	c := *a
	return &c, nil
}

// ListAgreements orders like the Postgres implementation: newest first
func (r *MemoryRepository) ListAgreements(ctx context.Context, filter models.AgreementFilter) ([]*models.Agreement, error) {
	matched := r.matchAgreements(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].AgreementID < matched[j].AgreementID
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (r *MemoryRepository) CountAgreements(ctx context.Context, filter models.AgreementFilter) (int, error) {
	return len(r.matchAgreements(filter)), nil
}

func (r *MemoryRepository) matchAgreements(filter models.AgreementFilter) []*models.Agreement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Agreement
	for _, a := range r.agreements {
		if filter.Matches(a) {
			c := *a
			out = append(out, &c)
		}
	}
	return out
}

type eventKey struct {
	source   string
	sequence uint64
}

// SaveEvents skips replays the way the Postgres unique keys do: an event
// whose ID or (source, sequence) is already stored is ignored.
func (r *MemoryRepository) SaveEvents(ctx context.Context, events []models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range events {
		key := eventKey{source: ev.SourceID, sequence: ev.Sequence}
		if _, ok := r.eventIDs[ev.EventID]; ok {
			continue
		}
		if _, ok := r.eventSeqs[key]; ok {
			continue
		}
		ev.Agreement, ev.Factory, ev.Instance = nil, nil, nil
		r.eventIDs[ev.EventID] = struct{}{}
		r.eventSeqs[key] = struct{}{}
		r.events = append(r.events, ev)
	}
	return nil
}

// ListEvents returns events in the order they were saved
func (r *MemoryRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Event
	for _, ev := range r.events {
		if filter.SourceID != "" && ev.SourceID != filter.SourceID {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		out = append(out, ev)
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *MemoryRepository) SaveFactory(ctx context.Context, f *models.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *f
	if cur, ok := r.factories[f.FactoryID]; ok {
		c.ExtraData = cur.ExtraData
		c.AuthorizedAt = cur.AuthorizedAt
	}
	r.factories[f.FactoryID] = &c
	return nil
}

func (r *MemoryRepository) ListFactories(ctx context.Context) ([]*models.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Factory, 0, len(r.factories))
	for _, f := range r.factories {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AuthorizedAt.Equal(out[j].AuthorizedAt) {
			return out[i].AuthorizedAt.Before(out[j].AuthorizedAt)
		}
		return out[i].FactoryID < out[j].FactoryID
	})
	return out, nil
}

func (r *MemoryRepository) SaveInstance(ctx context.Context, rec *models.InstanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[rec.InstanceID]; ok {
		return nil
	}
	c := *rec
	r.instances[rec.InstanceID] = &c
	return nil
}

func (r *MemoryRepository) GetInstance(ctx context.Context, instanceID string) (*models.InstanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	c := *rec
	return &c, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) Close() error {
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// Package registry keeps the allow-list of factories permitted to create
// agreement instances and the provenance of every instance they created.
package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"griefing/internal/address"
	"griefing/internal/errkind"
	"griefing/internal/models"
)

var (
	ErrNotAdmin                  = errkind.New(errkind.Authorization, "only admin")
	ErrUnauthorizedFactory       = errkind.New(errkind.Authorization, "factory is not authorized")
	ErrInstanceAlreadyRegistered = errkind.New(errkind.StateConflict, "instance already registered")
	ErrFactoryRetired            = errkind.New(errkind.StateConflict, "factory is retired")
	ErrFactoryNotRegistered      = errkind.New(errkind.StateConflict, "factory is not registered")
	ErrIndexOutOfRange           = errkind.New(errkind.InvalidArgument, "instance index out of range")
	ErrInvalidIdentity           = errkind.New(errkind.InvalidArgument, "invalid identity")
)

// Emitter receives registry events
type Emitter interface {
	Emit(ctx context.Context, ev *models.Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, *models.Event) {}

// Registry is safe for concurrent use
type Registry struct {
	id           address.Address
	admin        address.Address
	instanceType string
	clock        clock.Clock
	emitter      Emitter

	mu        sync.RWMutex
	factories map[address.Address]*models.Factory
	order     []address.Address
	instances []models.InstanceRecord
	byID      map[address.Address]int
	seq       uint64
}

// Option configures a Registry
type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithEmitter(e Emitter) Option {
	return func(r *Registry) { r.emitter = e }
}

// New creates a registry administered by admin that records instances of
// instanceType
func New(id, admin address.Address, instanceType string, opts ...Option) *Registry {
	r := &Registry{
		id:           id,
		admin:        admin,
		instanceType: instanceType,
		clock:        clock.New(),
		emitter:      nopEmitter{},
		factories:    make(map[address.Address]*models.Factory),
		byID:         make(map[address.Address]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) ID() address.Address {
	return r.id
}

func (r *Registry) Admin() address.Address {
	return r.admin
}

func (r *Registry) InstanceType() string {
	return r.instanceType
}

// AuthorizeFactory adds factory to the allow-list. Authorizing a factory
// that is already registered is a no-op; a retired factory stays retired.
func (r *Registry) AuthorizeFactory(ctx context.Context, caller, factory address.Address, extraData []byte) error {
	if caller != r.admin {
		return ErrNotAdmin
	}
	if err := factory.Validate(); err != nil {
		return fmt.Errorf("%w: factory: %v", ErrInvalidIdentity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.factories[factory]; ok {
		if f.Status == models.FactoryRetired {
			return ErrFactoryRetired
		}
		return nil
	}

	f := &models.Factory{
		FactoryID:    factory.String(),
		RegistryID:   r.id.String(),
		Status:       models.FactoryRegistered,
		ExtraData:    append([]byte(nil), extraData...),
		AuthorizedAt: r.clock.Now(),
	}
	r.factories[factory] = f
	r.order = append(r.order, factory)

	slog.Info("Factory authorized", "registry_id", r.id, "factory_id", factory)

	snap := *f
	r.emit(ctx, models.EventFactoryAuthorized, map[string]interface{}{
		"factory":    factory.String(),
		"extra_data": "0x" + hex.EncodeToString(extraData),
	}, func(ev *models.Event) { ev.Factory = &snap })
	return nil
}

// RetireFactory stops factory from recording new instances. Instances it
// already recorded keep their provenance.
func (r *Registry) RetireFactory(ctx context.Context, caller, factory address.Address) error {
	if caller != r.admin {
		return ErrNotAdmin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factories[factory]
	if !ok || f.Status != models.FactoryRegistered {
		return ErrFactoryNotRegistered
	}
	now := r.clock.Now()
	f.Status = models.FactoryRetired
	f.RetiredAt = &now

	slog.Info("Factory retired", "registry_id", r.id, "factory_id", factory)

	snap := *f
	r.emit(ctx, models.EventFactoryRetired, map[string]interface{}{
		"factory": factory.String(),
	}, func(ev *models.Event) { ev.Factory = &snap })
	return nil
}

// FactoryStatus returns FactoryUnregistered for unknown factories
func (r *Registry) FactoryStatus(factory address.Address) models.FactoryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[factory]; ok {
		return f.Status
	}
	return models.FactoryUnregistered
}

func (r *Registry) Factory(factory address.Address) (models.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[factory]
	if !ok {
		return models.Factory{}, false
	}
	return *f, true
}

// Factories returns every known factory in authorization order
func (r *Registry) Factories() []models.Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Factory, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.factories[id])
	}
	return out
}

func (r *Registry) IsAuthorized(factory address.Address) bool {
	return r.FactoryStatus(factory) == models.FactoryRegistered
}

// RecordInstance stores the provenance of instance. Only registered
// factories may record; recording the same instance twice from the same
// factory returns the existing record.
func (r *Registry) RecordInstance(ctx context.Context, factory, instance, creator address.Address) (models.InstanceRecord, error) {
	if err := instance.Validate(); err != nil {
		return models.InstanceRecord{}, fmt.Errorf("%w: instance: %v", ErrInvalidIdentity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factories[factory]
	if !ok || f.Status != models.FactoryRegistered {
		return models.InstanceRecord{}, ErrUnauthorizedFactory
	}
	if idx, ok := r.byID[instance]; ok {
		rec := r.instances[idx]
		if rec.FactoryID != factory.String() {
			return models.InstanceRecord{}, ErrInstanceAlreadyRegistered
		}
		return rec, nil
	}

	rec := models.InstanceRecord{
		InstanceID:   instance.String(),
		FactoryID:    factory.String(),
		RegistryID:   r.id.String(),
		InstanceType: r.instanceType,
		Index:        len(r.instances),
		Creator:      creator.String(),
		CreatedAt:    r.clock.Now(),
	}
	r.instances = append(r.instances, rec)
	r.byID[instance] = rec.Index

	snap := rec
	r.emit(ctx, models.EventInstanceCreated, map[string]interface{}{
		"instance":      rec.InstanceID,
		"factory":       rec.FactoryID,
		"creator":       rec.Creator,
		"index":         rec.Index,
		"instance_type": rec.InstanceType,
	}, func(ev *models.Event) { ev.Instance = &snap })
	return rec, nil
}

// FactoryOf returns the factory that created instance
func (r *Registry) FactoryOf(instance address.Address) (address.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[instance]
	if !ok {
		return address.Zero, false
	}
	return address.Address(r.instances[idx].FactoryID), true
}

// Instance returns the record at position index
func (r *Registry) Instance(index int) (models.InstanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.instances) {
		return models.InstanceRecord{}, ErrIndexOutOfRange
	}
	return r.instances[index], nil
}

func (r *Registry) InstanceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Instances returns up to limit records starting at offset. A limit <= 0
// returns everything after offset.
func (r *Registry) Instances(offset, limit int) []models.InstanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.instances, offset, limit)
}

func (r *Registry) InstancesByFactory(factory address.Address) []models.InstanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.InstanceRecord
	for _, rec := range r.instances {
		if rec.FactoryID == factory.String() {
			out = append(out, rec)
		}
	}
	return out
}

// emit requires r.mu
func (r *Registry) emit(ctx context.Context, typ models.EventType, data map[string]interface{}, attach func(*models.Event)) {
	r.seq++
	ev := &models.Event{
		EventID:   uuid.NewString(),
		SourceID:  r.id.String(),
		EventType: typ,
		Sequence:  r.seq,
		Data:      data,
		Timestamp: r.clock.Now(),
	}
	attach(ev)
	r.emitter.Emit(ctx, ev)
}

func page(all []models.InstanceRecord, offset, limit int) []models.InstanceRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []models.InstanceRecord{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]models.InstanceRecord(nil), all[offset:end]...)
}

// Package factory creates instances from a template and records their
// provenance in a registry.
package factory

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"griefing/internal/address"
	"griefing/internal/errkind"
	"griefing/internal/models"
)

var (
	ErrInstanceExists  = errkind.New(errkind.StateConflict, "instance already exists")
	ErrUnknownInstance = errkind.New(errkind.InvalidArgument, "unknown instance")
	ErrIndexOutOfRange = errkind.New(errkind.InvalidArgument, "instance index out of range")
	ErrInvalidCreator  = errkind.New(errkind.InvalidArgument, "invalid creator")
)

// Instance is what a template builds
type Instance interface {
	ID() address.Address
	// Announce publishes the instance's creation; called once it is recorded
	Announce(ctx context.Context)
}

// Template builds instances of type I from parameters P
type Template[P any, I Instance] interface {
	ID() address.Address
	InstanceType() string
	Build(id, factory address.Address, params P) (I, error)
}

// Recorder stores instance provenance
type Recorder interface {
	RecordInstance(ctx context.Context, factory, instance, creator address.Address) (models.InstanceRecord, error)
}

type entry[I Instance] struct {
	instance I
	creator  address.Address
}

// Factory is safe for concurrent use. Creations are serialized so that an
// instance is either built, recorded and announced, or leaves no trace.
type Factory[P any, I Instance] struct {
	id       address.Address
	template Template[P, I]
	registry Recorder

	mu        sync.Mutex
	nonce     uint64
	instances []entry[I]
	byID      map[address.Address]int
}

// New creates the factory identified by id
func New[P any, I Instance](id address.Address, template Template[P, I], registry Recorder) *Factory[P, I] {
	return &Factory[P, I]{
		id:       id,
		template: template,
		registry: registry,
		byID:     make(map[address.Address]int),
	}
}

func (f *Factory[P, I]) ID() address.Address {
	return f.id
}

func (f *Factory[P, I]) Template() Template[P, I] {
	return f.template
}

// Create builds a new instance with an identity derived from the factory's
// creation counter
func (f *Factory[P, I]) Create(ctx context.Context, creator address.Address, params P) (I, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], f.nonce)
	id := address.Contract([]byte(f.id), nonce[:])

	inst, err := f.create(ctx, id, creator, params)
	if err != nil {
		return inst, err
	}
	f.nonce++
	return inst, nil
}

// CreateSalty builds a new instance whose identity depends only on the
// factory and salt, so it can be computed before creation
func (f *Factory[P, I]) CreateSalty(ctx context.Context, creator address.Address, params P, salt []byte) (I, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create(ctx, f.SaltyID(salt), creator, params)
}

// SaltyID returns the identity CreateSalty would assign for salt
func (f *Factory[P, I]) SaltyID(salt []byte) address.Address {
	return address.Contract([]byte(f.id), []byte("salt"), salt)
}

// create requires f.mu
func (f *Factory[P, I]) create(ctx context.Context, id, creator address.Address, params P) (I, error) {
	var zero I

	if err := creator.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidCreator, err)
	}
	if _, ok := f.byID[id]; ok {
		return zero, ErrInstanceExists
	}

	inst, err := f.template.Build(id, f.id, params)
	if err != nil {
		return zero, fmt.Errorf("build %s: %w", f.template.InstanceType(), err)
	}
	if _, err := f.registry.RecordInstance(ctx, f.id, id, creator); err != nil {
		return zero, fmt.Errorf("record instance %s: %w", id, err)
	}

	f.byID[id] = len(f.instances)
	f.instances = append(f.instances, entry[I]{instance: inst, creator: creator})
	inst.Announce(ctx)

	slog.Info("Instance created",
		"factory_id", f.id,
		"instance_id", id,
		"instance_type", f.template.InstanceType(),
		"creator", creator,
	)
	return inst, nil
}

// Instance returns the instance with identity id
func (f *Factory[P, I]) Instance(id address.Address) (I, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.byID[id]
	if !ok {
		var zero I
		return zero, ErrUnknownInstance
	}
	return f.instances[idx].instance, nil
}

// InstanceAt returns the index-th instance created by this factory
func (f *Factory[P, I]) InstanceAt(index int) (I, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.instances) {
		var zero I
		return zero, ErrIndexOutOfRange
	}
	return f.instances[index].instance, nil
}

// Instances returns every instance in creation order
func (f *Factory[P, I]) Instances() []I {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]I, 0, len(f.instances))
	for _, e := range f.instances {
		out = append(out, e.instance)
	}
	return out
}

func (f *Factory[P, I]) InstanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// InstanceCreator returns the account that asked for instance id
func (f *Factory[P, I]) InstanceCreator(id address.Address) (address.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.byID[id]
	if !ok {
		return address.Zero, ErrUnknownInstance
	}
	return f.instances[idx].creator, nil
}

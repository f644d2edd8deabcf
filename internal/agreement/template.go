// Package agreement implements the one-way griefing agreement: a staker
// locks collateral that a counterparty (or an active operator) may burn at
// a cost until a countdown-gated deadline passes, after which the remaining
// stake can be retrieved.
//
// A Template holds the shared behavior and never carries agreement state.
// Instances are produced by Template.Build, which is only reached through a
// factory's creation path; a live Agreement exposes no initializer at all.
package agreement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"

	"griefing/internal/address"
	"griefing/internal/griefing"
	"griefing/internal/models"
	"griefing/internal/token"
)

// InstanceType is the type name registries record for agreement instances
const InstanceType = "OneWayGriefing"

// Emitter receives every event an agreement emits, in emission order
type Emitter interface {
	Emit(ctx context.Context, ev *models.Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, *models.Event) {}

// Params are the creation-time inputs of an agreement
type Params struct {
	Operator        address.Address // optional
	Staker          address.Address
	Counterparty    address.Address
	Ratio           *big.Int // 18-decimal fixed point
	RatioType       griefing.RatioType
	CountdownLength time.Duration
	StaticMetadata  []byte
	Token           token.Token
}

// Template is the behavior shared by every agreement instance
type Template struct {
	id         address.Address
	clock      clock.Clock
	strategies *griefing.Strategies
	emitter    Emitter
}

// Option configures a Template
type Option func(*Template)

// WithClock sets the time source used for deadlines
func WithClock(c clock.Clock) Option {
	return func(t *Template) { t.clock = c }
}

// WithStrategies sets the cost formulas instances may select
func WithStrategies(s *griefing.Strategies) Option {
	return func(t *Template) { t.strategies = s }
}

// WithEmitter sets the sink for instance events
func WithEmitter(e Emitter) Option {
	return func(t *Template) { t.emitter = e }
}

// NewTemplate creates the template identified by id
func NewTemplate(id address.Address, opts ...Option) *Template {
	t := &Template{
		id:         id,
		clock:      clock.New(),
		strategies: griefing.DefaultStrategies(),
		emitter:    nopEmitter{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the template identity
func (t *Template) ID() address.Address {
	return t.id
}

// InstanceType returns the registry type name of the instances it builds
func (t *Template) InstanceType() string {
	return InstanceType
}

// Initialize always fails: the template has no state of its own to
// initialize and instances are initialized only while being built.
func (t *Template) Initialize(ctx context.Context, caller address.Address, p Params) error {
	return ErrNotConstructor
}

// Validate checks p without side effects
func (t *Template) Validate(p Params) error {
	_, err := t.validate(p)
	return err
}

func (t *Template) validate(p Params) (griefing.CostFunc, error) {
	if p.Token == nil {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidParams)
	}
	if err := p.Staker.Validate(); err != nil {
		return nil, fmt.Errorf("%w: staker: %v", ErrInvalidParams, err)
	}
	if err := p.Counterparty.Validate(); err != nil {
		return nil, fmt.Errorf("%w: counterparty: %v", ErrInvalidParams, err)
	}
	if p.Staker == p.Counterparty {
		return nil, fmt.Errorf("%w: staker and counterparty must differ", ErrInvalidParams)
	}
	if !p.Operator.IsZero() {
		if err := p.Operator.Validate(); err != nil {
			return nil, fmt.Errorf("%w: operator: %v", ErrInvalidParams, err)
		}
	}
	if p.Ratio == nil || p.Ratio.Sign() < 0 {
		return nil, fmt.Errorf("%w: ratio must be non-negative", ErrInvalidParams)
	}
	if p.CountdownLength < 0 {
		return nil, fmt.Errorf("%w: countdown length must be non-negative", ErrInvalidParams)
	}
	cost, err := t.strategies.Lookup(p.RatioType)
	if err != nil {
		return nil, err
	}
	return cost, nil
}

// Build constructs a fully initialized instance with identity id.
// Nothing is emitted until the creator calls Announce.
func (t *Template) Build(id, factory address.Address, p Params) (*Agreement, error) {
	cost, err := t.validate(p)
	if err != nil {
		return nil, err
	}
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: instance id: %v", ErrInvalidParams, err)
	}

	now := t.clock.Now()
	a := &Agreement{
		id:      id,
		factory: factory,
		tmpl:    t,
		token:   p.Token,
		cost:    cost,
		st: state{
			staker:         p.Staker,
			counterparty:   p.Counterparty,
			operator:       p.Operator,
			operatorActive: !p.Operator.IsZero(),
			ratio:          new(big.Int).Set(p.Ratio),
			ratioType:      p.RatioType,
			length:         p.CountdownLength,
			stake:          new(big.Int),
			griefCost:      new(big.Int),
			staticMetadata: cloneBytes(p.StaticMetadata),
			createdAt:      now,
			updatedAt:      now,
		},
	}
	return a, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

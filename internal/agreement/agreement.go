package agreement

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"griefing/internal/address"
	"griefing/internal/griefing"
	"griefing/internal/models"
	"griefing/internal/token"
)

// Agreement is one staker/counterparty relationship.
// Every operation runs under the instance lock and either fully applies or
// returns an error without changing state.
type Agreement struct {
	id       address.Address
	factory  address.Address
	tmpl     *Template
	token    token.Token
	cost     griefing.CostFunc
	announce sync.Once

	mu sync.Mutex
	st state
}

type state struct {
	staker         address.Address
	counterparty   address.Address
	operator       address.Address
	operatorActive bool

	ratio     *big.Int
	ratioType griefing.RatioType

	length      time.Duration
	deadline    time.Time
	hasDeadline bool

	stake     *big.Int
	griefCost *big.Int

	staticMetadata   []byte
	variableMetadata []byte

	seq       uint64
	createdAt time.Time
	updatedAt time.Time
}

// Announce emits the Initialized event. Only the first call has an effect;
// factories call it once the instance is registered.
func (a *Agreement) Announce(ctx context.Context) {
	a.announce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.emit(ctx, models.EventInitialized, map[string]interface{}{
			"operator":         a.st.operator.String(),
			"staker":           a.st.staker.String(),
			"counterparty":     a.st.counterparty.String(),
			"ratio":            a.st.ratio.String(),
			"ratio_type":       a.st.ratioType.String(),
			"countdown_length": int64(a.st.length / time.Second),
			"static_metadata":  hexBytes(a.st.staticMetadata),
			"token":            a.token.ID().String(),
		})
	})
}

// ID returns the instance identity
func (a *Agreement) ID() address.Address {
	return a.id
}

// Factory returns the factory that created the instance
func (a *Agreement) Factory() address.Address {
	return a.factory
}

// Template returns the shared behavior the instance runs on
func (a *Agreement) Template() *Template {
	return a.tmpl
}

// Token returns the ledger the stake is escrowed in
func (a *Agreement) Token() token.Token {
	return a.token
}

func (a *Agreement) IsStaker(who address.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return who == a.st.staker
}

func (a *Agreement) IsCounterparty(who address.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return who == a.st.counterparty
}

// Staker returns the party whose collateral is at risk
func (a *Agreement) Staker() address.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.staker
}

// Counterparty returns the party allowed to punish
func (a *Agreement) Counterparty() address.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.counterparty
}

// Ratio returns the fixed-point ratio and its type
func (a *Agreement) Ratio() (*big.Int, griefing.RatioType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.st.ratio), a.st.ratioType
}

// Stake returns the currently escrowed amount
func (a *Agreement) Stake() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.st.stake)
}

// GriefCost returns the cost charged by the most recent punishment
func (a *Agreement) GriefCost() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.st.griefCost)
}

// Snapshot returns the persisted form of the current state
func (a *Agreement) Snapshot() models.Agreement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Agreement) snapshot() models.Agreement {
	m := models.Agreement{
		AgreementID:      a.id.String(),
		FactoryID:        a.factory.String(),
		TemplateID:       a.tmpl.id.String(),
		TokenID:          a.token.ID().String(),
		Staker:           a.st.staker.String(),
		Counterparty:     a.st.counterparty.String(),
		Operator:         a.st.operator.String(),
		OperatorActive:   a.st.operatorActive,
		Ratio:            a.st.ratio.String(),
		RatioType:        a.st.ratioType.String(),
		CountdownLength:  a.st.length,
		Stake:            a.st.stake.String(),
		GriefCost:        a.st.griefCost.String(),
		StaticMetadata:   cloneBytes(a.st.staticMetadata),
		VariableMetadata: cloneBytes(a.st.variableMetadata),
		Sequence:         a.st.seq,
		CreatedAt:        a.st.createdAt,
		UpdatedAt:        a.st.updatedAt,
	}
	if a.st.hasDeadline {
		d := a.st.deadline
		m.Deadline = &d
	}
	return m
}

// isActiveOperator requires a.mu
func (a *Agreement) isActiveOperator(who address.Address) bool {
	return a.st.operatorActive && !a.st.operator.IsZero() && who == a.st.operator
}

func (a *Agreement) onlyStakerOrOperator(caller address.Address) error {
	if caller == a.st.staker || a.isActiveOperator(caller) {
		return nil
	}
	return ErrNotStakerOrOperator
}

func (a *Agreement) onlyCounterpartyOrOperator(caller address.Address) error {
	if caller == a.st.counterparty || a.isActiveOperator(caller) {
		return nil
	}
	return ErrNotCounterpartyOrOperator
}

func (a *Agreement) onlyActiveOperator(caller address.Address) error {
	if a.isActiveOperator(caller) {
		return nil
	}
	return ErrNotActiveOperator
}

// emit requires a.mu; it stamps the next sequence number and hands the
// event, with the post-state snapshot, to the template's emitter.
func (a *Agreement) emit(ctx context.Context, typ models.EventType, data map[string]interface{}) {
	now := a.tmpl.clock.Now()
	a.st.seq++
	a.st.updatedAt = now

	snap := a.snapshot()
	a.tmpl.emitter.Emit(ctx, &models.Event{
		EventID:   uuid.NewString(),
		SourceID:  a.id.String(),
		EventType: typ,
		Sequence:  a.st.seq,
		Data:      data,
		Timestamp: now,
		Agreement: &snap,
	})
}

func hexBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

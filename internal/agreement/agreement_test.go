package agreement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"griefing/internal/address"
	"griefing/internal/errkind"
	"griefing/internal/griefing"
	"griefing/internal/models"
	"griefing/internal/token"
)

type recorder struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recorder) Emit(_ context.Context, ev *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() *models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	ctx          context.Context
	clock        *clock.Mock
	events       *recorder
	nmr          *token.Ledger
	tmpl         *Template
	agreement    *Agreement
	staker       address.Address
	counterparty address.Address
	operator     address.Address
	outsider     address.Address
}

func newAccount() address.Address {
	return address.Address(keypair.MustRandom().Address())
}

func assertAmount(t *testing.T, want, got *big.Int) {
	t.Helper()
	assert.Zero(t, want.Cmp(got), "want %s got %s", want, got)
}

// newFixture builds an agreement with ratio 2 and a 1000 second countdown.
// Every participant holds 10000 NMR and has approved the instance for 5000.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:          context.Background(),
		clock:        clock.NewMock(),
		events:       &recorder{},
		staker:       newAccount(),
		counterparty: newAccount(),
		operator:     newAccount(),
		outsider:     newAccount(),
	}
	f.clock.Set(time.Unix(1_700_000_000, 0))
	f.nmr = token.NewLedger(address.Contract([]byte("nmr")))
	f.tmpl = NewTemplate(address.Contract([]byte("template")),
		WithClock(f.clock), WithEmitter(f.events))

	id := address.Contract([]byte("factory"), []byte{0})
	a, err := f.tmpl.Build(id, address.Contract([]byte("factory")), f.params())
	require.NoError(t, err)
	a.Announce(f.ctx)
	f.agreement = a

	for _, who := range []address.Address{f.staker, f.counterparty, f.operator, f.outsider} {
		require.NoError(t, f.nmr.Mint(f.ctx, who, token.Units(10000)))
		require.NoError(t, f.nmr.Approve(f.ctx, who, id, token.Units(5000)))
	}
	return f
}

func (f *fixture) params() Params {
	return Params{
		Operator:        f.operator,
		Staker:          f.staker,
		Counterparty:    f.counterparty,
		Ratio:           griefing.MustParseRatio("2"),
		RatioType:       griefing.Dec,
		CountdownLength: 1000 * time.Second,
		StaticMetadata:  []byte("static"),
		Token:           f.nmr,
	}
}

func (f *fixture) balance(t *testing.T, who address.Address) *big.Int {
	t.Helper()
	b, err := f.nmr.BalanceOf(f.ctx, who)
	require.NoError(t, err)
	return b
}

func (f *fixture) stake(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.agreement.IncreaseStake(f.ctx, f.staker, f.agreement.Stake(), token.Units(amount)))
}

func TestFreshInstance(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	assert.True(t, a.IsStaker(f.staker))
	assert.True(t, a.IsCounterparty(f.counterparty))
	assert.False(t, a.IsStaker(f.counterparty))
	assert.True(t, a.IsActiveOperator(f.operator))
	assert.True(t, a.HasActiveOperator())
	assert.Equal(t, f.operator, a.Operator())

	ratio, typ := a.Ratio()
	assertAmount(t, griefing.MustParseRatio("2"), ratio)
	assert.Equal(t, griefing.Dec, typ)
	assertAmount(t, big.NewInt(0), a.Stake())
	assertAmount(t, big.NewInt(0), a.GriefCost())

	_, set := a.Deadline()
	assert.False(t, set)
	assert.False(t, a.IsOver())
	assert.Equal(t, 1000*time.Second, a.TimeRemaining())

	static, variable := a.Metadata()
	assert.Equal(t, []byte("static"), static)
	assert.Nil(t, variable)

	ev := f.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, models.EventInitialized, ev.EventType)
	assert.Equal(t, uint64(1), ev.Sequence)
	assert.Equal(t, a.ID().String(), ev.SourceID)
	assert.Equal(t, f.staker.String(), ev.Data["staker"])
	assert.Equal(t, int64(1000), ev.Data["countdown_length"])
	assert.Equal(t, "0x"+"737461746963", ev.Data["static_metadata"])
}

func TestAnnounceOnce(t *testing.T) {
	f := newFixture(t)
	f.agreement.Announce(f.ctx)
	assert.Equal(t, []models.EventType{models.EventInitialized}, f.events.types())
}

func TestTemplateInitializeRejected(t *testing.T) {
	f := newFixture(t)
	err := f.tmpl.Initialize(f.ctx, f.staker, f.params())
	assert.ErrorIs(t, err, ErrNotConstructor)
	assert.ErrorIs(t, err, errkind.Reinitialization)
}

func TestBuildValidation(t *testing.T) {
	f := newFixture(t)
	id := address.Contract([]byte("other"))

	tests := []struct {
		name   string
		mutate func(p *Params)
		want   error
	}{
		{"missing token", func(p *Params) { p.Token = nil }, ErrInvalidParams},
		{"zero staker", func(p *Params) { p.Staker = address.Zero }, ErrInvalidParams},
		{"zero counterparty", func(p *Params) { p.Counterparty = address.Zero }, ErrInvalidParams},
		{"same parties", func(p *Params) { p.Counterparty = p.Staker }, ErrInvalidParams},
		{"bad operator", func(p *Params) { p.Operator = "nonsense" }, ErrInvalidParams},
		{"nil ratio", func(p *Params) { p.Ratio = nil }, ErrInvalidParams},
		{"negative ratio", func(p *Params) { p.Ratio = big.NewInt(-1) }, ErrInvalidParams},
		{"negative length", func(p *Params) { p.CountdownLength = -time.Second }, ErrInvalidParams},
		{"NaN ratio type", func(p *Params) { p.RatioType = griefing.NaN }, griefing.ErrUnsupportedRatioType},
		{"Inf ratio type", func(p *Params) { p.RatioType = griefing.Inf }, griefing.ErrUnsupportedRatioType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.params()
			tt.mutate(&p)
			_, err := f.tmpl.Build(id, address.Zero, p)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, f.tmpl.Validate(p), tt.want)
		})
	}
}

func TestBuildWithoutOperator(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.Operator = address.Zero

	a, err := f.tmpl.Build(address.Contract([]byte("no-op")), address.Zero, p)
	require.NoError(t, err)
	assert.False(t, a.HasActiveOperator())
	assert.ErrorIs(t, a.ActivateOperator(f.ctx, f.operator), ErrNotOperator)
}

func TestIncreaseStake(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	require.NoError(t, a.IncreaseStake(f.ctx, f.staker, big.NewInt(0), token.Units(500)))
	assertAmount(t, token.Units(500), a.Stake())
	assertAmount(t, token.Units(500), f.balance(t, a.ID()))
	assertAmount(t, token.Units(9500), f.balance(t, f.staker))

	ev := f.events.last()
	assert.Equal(t, models.EventStakeAdded, ev.EventType)
	assert.Equal(t, token.Units(500).String(), ev.Data["new_stake"])
	assert.Equal(t, f.staker.String(), ev.Data["funder"])
	assert.Equal(t, token.Units(500).String(), ev.Agreement.Stake)

	// operator may top up too
	require.NoError(t, a.IncreaseStake(f.ctx, f.operator, token.Units(500), token.Units(100)))
	assertAmount(t, token.Units(600), a.Stake())
}

func TestIncreaseStakeRejections(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	err := a.IncreaseStake(f.ctx, f.counterparty, big.NewInt(0), token.Units(1))
	assert.ErrorIs(t, err, ErrNotStakerOrOperator)

	err = a.IncreaseStake(f.ctx, f.staker, token.Units(1), token.Units(1))
	assert.ErrorIs(t, err, ErrStakeMismatch)

	err = a.IncreaseStake(f.ctx, f.staker, big.NewInt(0), big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// over the 5000 allowance
	err = a.IncreaseStake(f.ctx, f.staker, big.NewInt(0), token.Units(6000))
	assert.ErrorIs(t, err, token.ErrFundsUnavailable)
	assertAmount(t, big.NewInt(0), a.Stake())
}

func TestReward(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 100)

	require.NoError(t, a.Reward(f.ctx, f.counterparty, token.Units(100), token.Units(50)))
	assertAmount(t, token.Units(150), a.Stake())
	assertAmount(t, token.Units(9950), f.balance(t, f.counterparty))

	err := a.Reward(f.ctx, f.staker, token.Units(150), token.Units(1))
	assert.ErrorIs(t, err, ErrNotCounterpartyOrOperator)
}

func TestPunish(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)
	supply := f.nmr.TotalSupply()

	cost, err := a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(100), []byte("bad"))
	require.NoError(t, err)
	assertAmount(t, token.Units(200), cost)
	assertAmount(t, token.Units(400), a.Stake())
	assertAmount(t, token.Units(200), a.GriefCost())
	assertAmount(t, token.Units(9800), f.balance(t, f.counterparty))
	assertAmount(t, token.Units(400), f.balance(t, a.ID()))
	assertAmount(t, new(big.Int).Sub(supply, token.Units(300)), f.nmr.TotalSupply())

	ev := f.events.last()
	assert.Equal(t, models.EventGriefed, ev.EventType)
	assert.Equal(t, token.Units(100).String(), ev.Data["punishment"])
	assert.Equal(t, token.Units(200).String(), ev.Data["cost"])
	assert.Equal(t, "0x626164", ev.Data["message"])
}

func TestPunishRejections(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)

	_, err := a.Punish(f.ctx, f.staker, f.staker, token.Units(10), nil)
	assert.ErrorIs(t, err, ErrNotCounterpartyOrOperator)

	// more than the stake
	_, err = a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(600), nil)
	assert.ErrorIs(t, err, ErrInsufficientStake)
	assert.ErrorIs(t, err, errkind.Funds)

	// cost 2 * 3000 exceeds the 5000 allowance
	_, err = a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(3000), nil)
	assert.ErrorIs(t, err, token.ErrBurnAuthorizationFailed)

	assertAmount(t, token.Units(500), a.Stake())
	assertAmount(t, token.Units(10000), f.balance(t, f.counterparty))
}

// brokenBurnToken is a ledger whose escrow burns always fail
type brokenBurnToken struct {
	*token.Ledger
}

func (brokenBurnToken) Burn(context.Context, address.Address, *big.Int) error {
	return errors.New("burn unavailable")
}

func TestPunishFailedBurnLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	p := f.params()
	p.Token = brokenBurnToken{f.nmr}
	a, err := f.tmpl.Build(f.agreement.ID(), address.Contract([]byte("factory")), p)
	require.NoError(t, err)
	require.NoError(t, a.IncreaseStake(f.ctx, f.staker, new(big.Int), token.Units(500)))
	seq := a.Snapshot().Sequence
	supply := f.nmr.TotalSupply()

	_, err = a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(100), nil)
	require.Error(t, err)

	assertAmount(t, token.Units(500), a.Stake())
	assertAmount(t, new(big.Int), a.GriefCost())
	assertAmount(t, token.Units(10000), f.balance(t, f.counterparty))
	assertAmount(t, token.Units(500), f.balance(t, a.ID()))
	assertAmount(t, supply, f.nmr.TotalSupply())
	assert.Equal(t, seq, a.Snapshot().Sequence)

	allowance, err := f.nmr.Allowance(f.ctx, f.counterparty, a.ID())
	require.NoError(t, err)
	assertAmount(t, token.Units(5000), allowance)
}

func TestPunishRequiresEscrow(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)

	// escrow drained behind the agreement's back
	require.NoError(t, f.nmr.Transfer(f.ctx, a.ID(), f.outsider, token.Units(450)))

	_, err := a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(100), nil)
	assert.ErrorIs(t, err, token.ErrFundsUnavailable)
	assertAmount(t, token.Units(500), a.Stake())
	assertAmount(t, token.Units(10000), f.balance(t, f.counterparty))
	assertAmount(t, token.Units(50), f.balance(t, a.ID()))
}

func TestPunishByOperator(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)

	cost, err := a.Punish(f.ctx, f.operator, f.operator, token.Units(10), nil)
	require.NoError(t, err)
	assertAmount(t, token.Units(20), cost)
	assertAmount(t, token.Units(9980), f.balance(t, f.operator))
}

func TestStartCountdown(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	_, err := a.StartCountdown(f.ctx, f.counterparty)
	assert.ErrorIs(t, err, ErrNotStakerOrOperator)

	start := f.clock.Now()
	deadline, err := a.StartCountdown(f.ctx, f.staker)
	require.NoError(t, err)
	assert.Equal(t, start.Add(1000*time.Second), deadline)
	assert.Equal(t, deadline.Unix(), f.events.last().Data["deadline"])

	got, set := a.Deadline()
	assert.True(t, set)
	assert.Equal(t, deadline, got)

	// write-once for every caller
	_, err = a.StartCountdown(f.ctx, f.operator)
	assert.ErrorIs(t, err, ErrDeadlineAlreadySet)
	_, err = a.StartCountdown(f.ctx, f.outsider)
	assert.ErrorIs(t, err, ErrDeadlineAlreadySet)

	f.clock.Add(400 * time.Second)
	assert.Equal(t, 600*time.Second, a.TimeRemaining())
	assert.False(t, a.IsOver())
}

func TestDeadlineGates(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)

	_, err := a.StartCountdown(f.ctx, f.staker)
	require.NoError(t, err)

	_, err = a.RetrieveStake(f.ctx, f.staker, f.staker)
	assert.ErrorIs(t, err, ErrDeadlineNotPassed)

	f.clock.Add(1001 * time.Second)
	assert.True(t, a.IsOver())
	assert.Equal(t, time.Duration(0), a.TimeRemaining())

	_, err = a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(10), nil)
	assert.ErrorIs(t, err, ErrAgreementEnded)
	assert.ErrorIs(t, err, errkind.TemporalGate)

	err = a.IncreaseStake(f.ctx, f.staker, token.Units(500), token.Units(1))
	assert.ErrorIs(t, err, ErrAgreementEnded)
	err = a.Reward(f.ctx, f.counterparty, token.Units(500), token.Units(1))
	assert.ErrorIs(t, err, ErrAgreementEnded)

	// metadata is not gated
	require.NoError(t, a.SetVariableMetadata(f.ctx, f.staker, []byte("late")))
}

func TestRetrieveStake(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 500)
	_, err := a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(100), nil)
	require.NoError(t, err)

	_, err = a.StartCountdown(f.ctx, f.staker)
	require.NoError(t, err)
	f.clock.Add(1000 * time.Second)

	_, err = a.RetrieveStake(f.ctx, f.counterparty, f.counterparty)
	assert.ErrorIs(t, err, ErrNotStakerOrOperator)

	recipient := newAccount()
	amount, err := a.RetrieveStake(f.ctx, f.staker, recipient)
	require.NoError(t, err)
	assertAmount(t, token.Units(400), amount)
	assertAmount(t, big.NewInt(0), a.Stake())
	assertAmount(t, token.Units(400), f.balance(t, recipient))

	ev := f.events.last()
	assert.Equal(t, models.EventStakeTaken, ev.EventType)
	assert.Equal(t, "0", ev.Data["new_stake"])

	// nothing left; still succeeds and emits
	amount, err = a.RetrieveStake(f.ctx, f.operator, recipient)
	require.NoError(t, err)
	assertAmount(t, big.NewInt(0), amount)
	assert.Equal(t, models.EventStakeTaken, f.events.last().EventType)
}

func TestOperatorLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	assert.ErrorIs(t, a.ActivateOperator(f.ctx, f.operator), ErrOperatorAlreadyActive)
	assert.ErrorIs(t, a.DeactivateOperator(f.ctx, f.staker), ErrNotActiveOperator)

	require.NoError(t, a.DeactivateOperator(f.ctx, f.operator))
	assert.False(t, a.HasActiveOperator())
	assert.Equal(t, false, f.events.last().Data["active"])

	// a deactivated operator loses its powers
	_, err := a.StartCountdown(f.ctx, f.operator)
	assert.ErrorIs(t, err, ErrNotStakerOrOperator)
	_, err = a.Punish(f.ctx, f.operator, f.operator, big.NewInt(0), nil)
	assert.ErrorIs(t, err, ErrNotCounterpartyOrOperator)
	assert.ErrorIs(t, a.IncreaseStake(f.ctx, f.operator, new(big.Int), token.Units(1)), ErrNotStakerOrOperator)
	assert.ErrorIs(t, a.Reward(f.ctx, f.operator, new(big.Int), token.Units(1)), ErrNotCounterpartyOrOperator)
	_, err = a.RetrieveStake(f.ctx, f.operator, f.operator)
	assert.ErrorIs(t, err, ErrNotStakerOrOperator)
	assert.ErrorIs(t, a.SetVariableMetadata(f.ctx, f.operator, []byte("x")), ErrNotStakerOrOperator)
	assertAmount(t, new(big.Int), a.Stake())
	assertAmount(t, token.Units(10000), f.balance(t, f.operator))

	// the parties keep theirs
	require.NoError(t, a.IncreaseStake(f.ctx, f.staker, new(big.Int), token.Units(10)))
	require.NoError(t, a.Reward(f.ctx, f.counterparty, token.Units(10), token.Units(5)))
	assertAmount(t, token.Units(15), a.Stake())
	require.NoError(t, a.SetVariableMetadata(f.ctx, f.staker, []byte("x")))
	_, err = a.RetrieveStake(f.ctx, f.staker, f.staker)
	assert.ErrorIs(t, err, ErrDeadlineNotPassed)
	_, err = a.Punish(f.ctx, f.counterparty, f.counterparty, token.Units(1), nil)
	require.NoError(t, err)
	assertAmount(t, token.Units(14), a.Stake())

	assert.ErrorIs(t, a.ActivateOperator(f.ctx, f.outsider), ErrNotOperator)
	require.NoError(t, a.ActivateOperator(f.ctx, f.operator))
	assert.True(t, a.IsActiveOperator(f.operator))

	next := newAccount()
	assert.ErrorIs(t, a.TransferOperator(f.ctx, f.operator, "bogus"), ErrInvalidParams)
	require.NoError(t, a.TransferOperator(f.ctx, f.operator, next))
	assert.True(t, a.IsActiveOperator(next))
	assert.False(t, a.IsActiveOperator(f.operator))

	require.NoError(t, a.RenounceOperator(f.ctx, next))
	assert.True(t, a.Operator().IsZero())
	assert.False(t, a.HasActiveOperator())
	assert.ErrorIs(t, a.ActivateOperator(f.ctx, next), ErrNotOperator)
}

func TestSetVariableMetadata(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	assert.ErrorIs(t, a.SetVariableMetadata(f.ctx, f.counterparty, []byte("x")), ErrNotStakerOrOperator)

	require.NoError(t, a.SetVariableMetadata(f.ctx, f.operator, []byte{0xab, 0xcd}))
	_, variable := a.Metadata()
	assert.Equal(t, []byte{0xab, 0xcd}, variable)
	assert.Equal(t, "0xabcd", f.events.last().Data["metadata"])
}

func TestSequenceIsMonotonic(t *testing.T) {
	f := newFixture(t)
	a := f.agreement
	f.stake(t, 10)
	require.NoError(t, a.SetVariableMetadata(f.ctx, f.staker, nil))
	_, err := a.StartCountdown(f.ctx, f.staker)
	require.NoError(t, err)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	for i, ev := range f.events.events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
		assert.Equal(t, ev.Sequence, ev.Agreement.Sequence)
	}
	assert.Equal(t, uint64(4), a.Snapshot().Sequence)
}

func TestConcurrentStakeIncreases(t *testing.T) {
	f := newFixture(t)
	a := f.agreement

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := a.IncreaseStake(f.ctx, f.staker, a.Stake(), token.Units(1))
				if err == nil {
					return
				}
				if !assert.ErrorIs(t, err, ErrStakeMismatch) {
					return
				}
			}
		}()
	}
	wg.Wait()
	assertAmount(t, token.Units(20), a.Stake())
}

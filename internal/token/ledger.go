package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"griefing/internal/address"
)

// Ledger is an in-memory token with balances, allowances and burn accounting.
// It plays the part of the NMR token for demos and tests.
type Ledger struct {
	id address.Address

	mu          sync.Mutex
	balances    map[address.Address]*big.Int
	allowances  map[address.Address]map[address.Address]*big.Int
	totalSupply *big.Int
	burned      *big.Int
}

var _ Token = (*Ledger)(nil)

// NewLedger creates an empty ledger identified by id
func NewLedger(id address.Address) *Ledger {
	return &Ledger{
		id:          id,
		balances:    make(map[address.Address]*big.Int),
		allowances:  make(map[address.Address]map[address.Address]*big.Int),
		totalSupply: new(big.Int),
		burned:      new(big.Int),
	}
}

func (l *Ledger) ID() address.Address {
	return l.id
}

// Mint credits amount to the given account
func (l *Ledger) Mint(ctx context.Context, to address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

// TotalSupply returns minted minus burned tokens
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// Burned returns the total amount destroyed so far
func (l *Ledger) Burned() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.burned)
}

func (l *Ledger) BalanceOf(ctx context.Context, owner address.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(owner)), nil
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender address.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner, spender)), nil
}

func (l *Ledger) Approve(ctx context.Context, owner, spender address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setAllowance(owner, spender, amount)
	return nil
}

func (l *Ledger) ChangeApproval(ctx context.Context, owner, spender address.Address, expected, amount *big.Int) error {
	if !validAmount(expected) || !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowance(owner, spender).Cmp(expected) != 0 {
		return ErrApprovalMismatch
	}
	l.setAllowance(owner, spender, amount)
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, from, to address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s: %w", amount, from, ErrFundsUnavailable)
	}
	l.debit(from, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) TransferFrom(ctx context.Context, spender, payer, recipient address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(payer, spender)
	if allowed.Cmp(amount) < 0 || l.balance(payer).Cmp(amount) < 0 {
		return fmt.Errorf("transferFrom %s from %s: %w", amount, payer, ErrFundsUnavailable)
	}
	l.setAllowance(payer, spender, new(big.Int).Sub(allowed, amount))
	l.debit(payer, amount)
	l.credit(recipient, amount)
	return nil
}

func (l *Ledger) Burn(ctx context.Context, holder address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance(holder).Cmp(amount) < 0 {
		return fmt.Errorf("burn %s from %s: %w", amount, holder, ErrFundsUnavailable)
	}
	l.destroy(holder, amount)
	return nil
}

func (l *Ledger) BurnFrom(ctx context.Context, spender, owner address.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 || l.balance(owner).Cmp(amount) < 0 {
		return ErrBurnAuthorizationFailed
	}
	l.setAllowance(owner, spender, new(big.Int).Sub(allowed, amount))
	l.destroy(owner, amount)
	return nil
}

// helpers below require l.mu

func (l *Ledger) balance(owner address.Address) *big.Int {
	if b, ok := l.balances[owner]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) credit(owner address.Address, amount *big.Int) {
	l.balances[owner] = new(big.Int).Add(l.balance(owner), amount)
}

func (l *Ledger) debit(owner address.Address, amount *big.Int) {
	l.balances[owner] = new(big.Int).Sub(l.balance(owner), amount)
}

func (l *Ledger) destroy(owner address.Address, amount *big.Int) {
	l.debit(owner, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	l.burned.Add(l.burned, amount)
}

func (l *Ledger) allowance(owner, spender address.Address) *big.Int {
	if byOwner, ok := l.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (l *Ledger) setAllowance(owner, spender address.Address, amount *big.Int) {
	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[address.Address]*big.Int)
		l.allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
}

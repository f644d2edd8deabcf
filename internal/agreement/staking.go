package agreement

import (
	"context"
	"fmt"
	"math/big"

	"griefing/internal/address"
	"griefing/internal/models"
)

// IncreaseStake pulls amount from the caller into escrow. currentStake must
// equal the live stake so callers cannot act on a stale read.
func (a *Agreement) IncreaseStake(ctx context.Context, caller address.Address, currentStake, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyStakerOrOperator(caller); err != nil {
		return err
	}
	return a.addStake(ctx, caller, currentStake, amount)
}

// Reward lets the counterparty side top up the staker's stake
func (a *Agreement) Reward(ctx context.Context, caller address.Address, currentStake, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyCounterpartyOrOperator(caller); err != nil {
		return err
	}
	return a.addStake(ctx, caller, currentStake, amount)
}

func (a *Agreement) addStake(ctx context.Context, funder address.Address, currentStake, amount *big.Int) error {
	if a.isOver() {
		return ErrAgreementEnded
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if currentStake == nil || currentStake.Cmp(a.st.stake) != 0 {
		return ErrStakeMismatch
	}

	if err := a.token.TransferFrom(ctx, a.id, funder, a.id, amount); err != nil {
		return fmt.Errorf("pull stake from %s: %w", funder, err)
	}
	a.st.stake = new(big.Int).Add(a.st.stake, amount)

	a.emit(ctx, models.EventStakeAdded, map[string]interface{}{
		"staker":    a.st.staker.String(),
		"funder":    funder.String(),
		"amount":    amount.String(),
		"new_stake": a.st.stake.String(),
	})
	return nil
}

// RetrieveStake sends the whole remaining stake to recipient once the
// deadline has passed and returns the amount moved.
func (a *Agreement) RetrieveStake(ctx context.Context, caller, recipient address.Address) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyStakerOrOperator(caller); err != nil {
		return nil, err
	}
	if !a.isOver() {
		return nil, ErrDeadlineNotPassed
	}
	if err := recipient.Validate(); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	amount := new(big.Int).Set(a.st.stake)
	if amount.Sign() > 0 {
		if err := a.token.Transfer(ctx, a.id, recipient, amount); err != nil {
			return nil, fmt.Errorf("release stake to %s: %w", recipient, err)
		}
	}
	a.st.stake = new(big.Int)

	a.emit(ctx, models.EventStakeTaken, map[string]interface{}{
		"staker":    a.st.staker.String(),
		"recipient": recipient.String(),
		"amount":    amount.String(),
		"new_stake": a.st.stake.String(),
	})
	return amount, nil
}

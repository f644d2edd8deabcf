package agreement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"griefing/internal/address"
	"griefing/internal/models"
	"griefing/internal/token"
)

// Punish burns punishment from the staker's stake and charges the cost
// given by the agreement's ratio to from. The stake shrinks by punishment,
// never by the cost. It returns the cost charged.
func (a *Agreement) Punish(ctx context.Context, caller, from address.Address, punishment *big.Int, message []byte) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyCounterpartyOrOperator(caller); err != nil {
		return nil, err
	}
	if a.isOver() {
		return nil, ErrAgreementEnded
	}
	if punishment == nil || punishment.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("punisher account: %w", err)
	}

	cost := a.cost(a.st.ratio, punishment)

	// Report a missing burn authorization before a stake shortfall, then
	// move tokens only once every check holds.
	allowance, err := a.checkBurnable(ctx, from, cost)
	if err != nil {
		return nil, err
	}
	if punishment.Cmp(a.st.stake) > 0 {
		return nil, ErrInsufficientStake
	}
	if err := a.checkEscrow(ctx, punishment); err != nil {
		return nil, err
	}

	// The cost is pulled into escrow first so that the single burn of
	// punishment + cost is the only step that cannot be undone.
	if err := a.token.TransferFrom(ctx, a.id, from, a.id, cost); err != nil {
		return nil, fmt.Errorf("%w: charge grief cost to %s: %v", token.ErrBurnAuthorizationFailed, from, err)
	}
	total := new(big.Int).Add(punishment, cost)
	if err := a.token.Burn(ctx, a.id, total); err != nil {
		err = fmt.Errorf("burn punishment and cost: %w", err)
		if refundErr := a.refund(ctx, from, cost, allowance); refundErr != nil {
			slog.Error("Failed to refund grief cost",
				"agreement_id", a.id,
				"punisher", from,
				"cost", cost.String(),
				"error", refundErr,
			)
			return nil, errors.Join(err, refundErr)
		}
		return nil, err
	}

	a.st.stake = new(big.Int).Sub(a.st.stake, punishment)
	a.st.griefCost = new(big.Int).Set(cost)

	a.emit(ctx, models.EventGriefed, map[string]interface{}{
		"punisher":   caller.String(),
		"staker":     a.st.staker.String(),
		"punishment": punishment.String(),
		"cost":       cost.String(),
		"message":    hexBytes(message),
	})
	return new(big.Int).Set(cost), nil
}

// checkBurnable returns from's current allowance to the instance
func (a *Agreement) checkBurnable(ctx context.Context, from address.Address, cost *big.Int) (*big.Int, error) {
	allowance, err := a.token.Allowance(ctx, from, a.id)
	if err != nil {
		return nil, fmt.Errorf("read allowance of %s: %w", from, err)
	}
	balance, err := a.token.BalanceOf(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", from, err)
	}
	if allowance.Cmp(cost) < 0 || balance.Cmp(cost) < 0 {
		return nil, token.ErrBurnAuthorizationFailed
	}
	return allowance, nil
}

// refund returns a cost already pulled into escrow and restores the
// allowance it consumed
func (a *Agreement) refund(ctx context.Context, from address.Address, cost, allowance *big.Int) error {
	if err := a.token.Transfer(ctx, a.id, from, cost); err != nil {
		return fmt.Errorf("refund grief cost: %w", err)
	}
	spent := new(big.Int).Sub(allowance, cost)
	if err := a.token.ChangeApproval(ctx, from, a.id, spent, allowance); err != nil {
		return fmt.Errorf("restore allowance: %w", err)
	}
	return nil
}

// checkEscrow verifies the instance's own balance covers the punishment
func (a *Agreement) checkEscrow(ctx context.Context, punishment *big.Int) error {
	escrow, err := a.token.BalanceOf(ctx, a.id)
	if err != nil {
		return fmt.Errorf("read escrow balance: %w", err)
	}
	if escrow.Cmp(punishment) < 0 {
		return fmt.Errorf("%w: escrow holds %s, punishment is %s", token.ErrFundsUnavailable, escrow, punishment)
	}
	return nil
}

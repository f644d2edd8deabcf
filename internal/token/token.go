package token

import (
	"context"
	"math/big"

	"griefing/internal/address"
	"griefing/internal/errkind"
)

// Decimals is the number of fractional digits of one whole token
const Decimals = 18

var (
	ErrFundsUnavailable        = errkind.New(errkind.Funds, "insufficient balance or allowance")
	ErrBurnAuthorizationFailed = errkind.New(errkind.Funds, "nmr burnFrom failed")
	ErrApprovalMismatch        = errkind.New(errkind.StateConflict, "current allowance incorrect")
	ErrInvalidAmount           = errkind.New(errkind.InvalidArgument, "invalid token amount")
)

// Token is the escrowed fungible-token ledger agreements move value through.
// Agreements never hold balances outside of calls to this interface.
type Token interface {
	// ID returns the ledger's own identity
	ID() address.Address

	BalanceOf(ctx context.Context, owner address.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender address.Address) (*big.Int, error)
	Approve(ctx context.Context, owner, spender address.Address, amount *big.Int) error
	// ChangeApproval sets a new allowance only if the current one equals expected
	ChangeApproval(ctx context.Context, owner, spender address.Address, expected, amount *big.Int) error

	Transfer(ctx context.Context, from, to address.Address, amount *big.Int) error
	// TransferFrom moves amount from payer to recipient using spender's allowance
	TransferFrom(ctx context.Context, spender, payer, recipient address.Address, amount *big.Int) error

	// Burn destroys amount from holder's own balance
	Burn(ctx context.Context, holder address.Address, amount *big.Int) error
	// BurnFrom destroys amount from owner's balance using spender's allowance
	BurnFrom(ctx context.Context, spender, owner address.Address, amount *big.Int) error
}

// Units converts a whole-token count into base units
func Units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), unit)
}

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Format renders base units as a decimal token string with all 18 fractional digits
func Format(amount *big.Int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	s := whole.String() + "." + padLeft(frac.String(), Decimals)
	if neg {
		return "-" + s
	}
	return s
}

func padLeft(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0
}

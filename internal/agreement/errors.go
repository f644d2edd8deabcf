package agreement

import "griefing/internal/errkind"

var (
	ErrNotStakerOrOperator       = errkind.New(errkind.Authorization, "only staker or active operator")
	ErrNotCounterpartyOrOperator = errkind.New(errkind.Authorization, "only counterparty or active operator")
	ErrNotActiveOperator         = errkind.New(errkind.Authorization, "only active operator")
	ErrNotOperator               = errkind.New(errkind.Authorization, "only operator")

	ErrNotConstructor = errkind.New(errkind.Reinitialization, "must be called within contract constructor")

	ErrDeadlineAlreadySet    = errkind.New(errkind.StateConflict, "deadline already set")
	ErrStakeMismatch         = errkind.New(errkind.StateConflict, "current stake incorrect")
	ErrOperatorAlreadyActive = errkind.New(errkind.StateConflict, "operator already active")

	ErrAgreementEnded    = errkind.New(errkind.TemporalGate, "agreement ended")
	ErrDeadlineNotPassed = errkind.New(errkind.TemporalGate, "deadline not passed")

	ErrInsufficientStake = errkind.New(errkind.Funds, "cannot burn more than current stake")

	ErrInvalidParams = errkind.New(errkind.InvalidArgument, "invalid agreement parameters")
	ErrInvalidAmount = errkind.New(errkind.InvalidArgument, "invalid amount")
)

package agreement

import (
	"context"
	"fmt"

	"griefing/internal/address"
	"griefing/internal/models"
)

// Operator returns the configured operator, Zero if none
func (a *Agreement) Operator() address.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.operator
}

// HasActiveOperator reports whether an operator is set and active
func (a *Agreement) HasActiveOperator() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.operatorActive && !a.st.operator.IsZero()
}

// IsActiveOperator reports whether who is the active operator
func (a *Agreement) IsActiveOperator(who address.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isActiveOperator(who)
}

// ActivateOperator is called by a deactivated operator to resume its role
func (a *Agreement) ActivateOperator(ctx context.Context, caller address.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.st.operator.IsZero() || caller != a.st.operator {
		return ErrNotOperator
	}
	if a.st.operatorActive {
		return ErrOperatorAlreadyActive
	}
	a.st.operatorActive = true
	a.emitOperatorUpdated(ctx)
	return nil
}

// DeactivateOperator suspends the operator's access until reactivated
func (a *Agreement) DeactivateOperator(ctx context.Context, caller address.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyActiveOperator(caller); err != nil {
		return err
	}
	a.st.operatorActive = false
	a.emitOperatorUpdated(ctx)
	return nil
}

// TransferOperator hands the role to next, which stays active
func (a *Agreement) TransferOperator(ctx context.Context, caller, next address.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyActiveOperator(caller); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: new operator: %v", ErrInvalidParams, err)
	}
	a.st.operator = next
	a.st.operatorActive = true
	a.emitOperatorUpdated(ctx)
	return nil
}

// RenounceOperator clears the operator for good
func (a *Agreement) RenounceOperator(ctx context.Context, caller address.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyActiveOperator(caller); err != nil {
		return err
	}
	a.st.operator = address.Zero
	a.st.operatorActive = false
	a.emitOperatorUpdated(ctx)
	return nil
}

func (a *Agreement) emitOperatorUpdated(ctx context.Context) {
	a.emit(ctx, models.EventOperatorUpdated, map[string]interface{}{
		"operator": a.st.operator.String(),
		"active":   a.st.operatorActive,
	})
}

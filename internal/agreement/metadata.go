package agreement

import (
	"context"

	"griefing/internal/address"
	"griefing/internal/models"
)

// SetVariableMetadata replaces the variable metadata wholesale.
// It is allowed before and after the deadline.
func (a *Agreement) SetVariableMetadata(ctx context.Context, caller address.Address, metadata []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.onlyStakerOrOperator(caller); err != nil {
		return err
	}
	a.st.variableMetadata = cloneBytes(metadata)

	a.emit(ctx, models.EventVariableMetadataSet, map[string]interface{}{
		"metadata": hexBytes(metadata),
	})
	return nil
}

// Metadata returns copies of the static and variable metadata
func (a *Agreement) Metadata() (static, variable []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneBytes(a.st.staticMetadata), cloneBytes(a.st.variableMetadata)
}

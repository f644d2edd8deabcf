package models

import "time"

// Agreement is the persisted state of one agreement instance.
// Amounts are base-unit integers rendered as decimal strings.
type Agreement struct {
	// Identification
	AgreementID string `json:"agreement_id"`
	FactoryID   string `json:"factory_id,omitempty"`
	TemplateID  string `json:"template_id"`
	TokenID     string `json:"token_id"`

	// Participants
	Staker         string `json:"staker"`
	Counterparty   string `json:"counterparty"`
	Operator       string `json:"operator,omitempty"`
	OperatorActive bool   `json:"operator_active"`

	// Griefing terms
	Ratio     string `json:"ratio"`
	RatioType string `json:"ratio_type"`

	// Countdown
	CountdownLength time.Duration `json:"countdown_length"`
	Deadline        *time.Time    `json:"deadline,omitempty"`

	// Balances
	Stake     string `json:"stake"`
	GriefCost string `json:"grief_cost"`

	// Metadata
	StaticMetadata   []byte `json:"static_metadata,omitempty"`
	VariableMetadata []byte `json:"variable_metadata,omitempty"`

	// Sequence of the last event applied to this state
	Sequence  uint64    `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgreementFilter provides criteria for listing agreements
type AgreementFilter struct {
	FactoryID    string
	Staker       string
	Counterparty string
	Limit        int
	Offset       int
}

// Matches reports whether a satisfies every non-empty criterion of f
func (f AgreementFilter) Matches(a *Agreement) bool {
	if f.FactoryID != "" && a.FactoryID != f.FactoryID {
		return false
	}
	if f.Staker != "" && a.Staker != f.Staker {
		return false
	}
	if f.Counterparty != "" && a.Counterparty != f.Counterparty {
		return false
	}
	return true
}

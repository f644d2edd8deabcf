package models

import (
	"time"
)

// AgreementResponse represents an agreement with current state for API responses
type AgreementResponse struct {
	AgreementID string `json:"agreement_id"`
	FactoryID   string `json:"factory_id,omitempty"`
	TemplateID  string `json:"template_id"`
	TokenID     string `json:"token_id"`

	// Participants
	Roles RolesResponse `json:"roles"`

	// Griefing terms
	Ratio     string `json:"ratio"` // decimal, e.g. "2.5"
	RatioType string `json:"ratio_type"`

	// Financials (formatted for UI)
	StakeUnits     string `json:"stake_units"`
	StakeTokens    string `json:"stake_tokens"` // Divided by 10^18
	GriefCostUnits string `json:"grief_cost_units"`

	// Countdown
	Status           string     `json:"status"` // open, countdown, ended, closed
	CountdownSeconds int64      `json:"countdown_seconds"`
	Deadline         *time.Time `json:"deadline,omitempty"`

	// Metadata
	StaticMetadata   string `json:"static_metadata,omitempty"`
	VariableMetadata string `json:"variable_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RolesResponse represents agreement participant roles
type RolesResponse struct {
	Staker         string `json:"staker"`
	Counterparty   string `json:"counterparty"`
	Operator       string `json:"operator,omitempty"`
	OperatorActive bool   `json:"operator_active"`
}

// EventResponse represents a simplified event for timeline
type EventResponse struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Sequence  uint64                 `json:"sequence"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// AgreementListResponse represents a paginated list of agreements
type AgreementListResponse struct {
	Agreements []AgreementSummary `json:"agreements"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// AgreementSummary represents an agreement summary for list views
type AgreementSummary struct {
	AgreementID  string    `json:"agreement_id"`
	FactoryID    string    `json:"factory_id,omitempty"`
	Staker       string    `json:"staker"`
	Counterparty string    `json:"counterparty"`
	StakeTokens  string    `json:"stake_tokens"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventsResponse represents a list of events
type EventsResponse struct {
	AgreementID string          `json:"agreement_id"`
	Events      []EventResponse `json:"events"`
	Total       int             `json:"total"`
}

// FactoriesResponse lists factories known to the registry
type FactoriesResponse struct {
	Factories []Factory `json:"factories"`
	Total     int       `json:"total"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

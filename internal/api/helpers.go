package api

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"griefing/internal/griefing"
	"griefing/internal/models"
	"griefing/internal/token"
)

// Agreement statuses as shown by the API
const (
	StatusOpen      = "open"      // countdown not started
	StatusCountdown = "countdown" // deadline in the future
	StatusEnded     = "ended"     // deadline passed, stake not retrieved
	StatusClosed    = "closed"    // deadline passed, nothing left at stake
)

// UnitsToTokens converts base units (10^-18 token) to a decimal token string
func UnitsToTokens(units string) (string, error) {
	if units == "" {
		return token.Format(new(big.Int)), nil
	}

	amount, ok := new(big.Int).SetString(units, 10)
	if !ok {
		return "", fmt.Errorf("invalid token amount: %q", units)
	}

	return token.Format(amount), nil
}

// RatioToDecimal renders a stored fixed-point ratio as a decimal string
func RatioToDecimal(ratio string) string {
	r, ok := new(big.Int).SetString(ratio, 10)
	if !ok {
		return ratio
	}
	return griefing.FormatRatio(r)
}

// CalculateAgreementStatus determines where an agreement is in its lifecycle
func CalculateAgreementStatus(a *models.Agreement, now time.Time) string {
	if a.Deadline == nil {
		return StatusOpen
	}
	if now.Before(*a.Deadline) {
		return StatusCountdown
	}
	if a.Stake == "" || a.Stake == "0" {
		return StatusClosed
	}
	return StatusEnded
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

// BuildAgreementResponse creates a full agreement response
func BuildAgreementResponse(a *models.Agreement, now time.Time) (*models.AgreementResponse, error) {
	stakeTokens, err := UnitsToTokens(a.Stake)
	if err != nil {
		return nil, err
	}

	return &models.AgreementResponse{
		AgreementID: a.AgreementID,
		FactoryID:   a.FactoryID,
		TemplateID:  a.TemplateID,
		TokenID:     a.TokenID,
		Roles: models.RolesResponse{
			Staker:         a.Staker,
			Counterparty:   a.Counterparty,
			Operator:       a.Operator,
			OperatorActive: a.OperatorActive,
		},
		Ratio:            RatioToDecimal(a.Ratio),
		RatioType:        a.RatioType,
		StakeUnits:       a.Stake,
		StakeTokens:      stakeTokens,
		GriefCostUnits:   a.GriefCost,
		Status:           CalculateAgreementStatus(a, now),
		CountdownSeconds: int64(a.CountdownLength / time.Second),
		Deadline:         a.Deadline,
		StaticMetadata:   hexOrEmpty(a.StaticMetadata),
		VariableMetadata: hexOrEmpty(a.VariableMetadata),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}, nil
}

// BuildAgreementSummary creates a summary for list views
func BuildAgreementSummary(a *models.Agreement, now time.Time) models.AgreementSummary {
	summary := models.AgreementSummary{
		AgreementID:  a.AgreementID,
		FactoryID:    a.FactoryID,
		Staker:       a.Staker,
		Counterparty: a.Counterparty,
		Status:       CalculateAgreementStatus(a, now),
		CreatedAt:    a.CreatedAt,
	}

	if tokens, err := UnitsToTokens(a.Stake); err == nil {
		summary.StakeTokens = tokens
	}

	return summary
}

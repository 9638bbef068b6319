package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
)

type AmountRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (r *AmountRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *AmountRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount, "amount is required")
	}
	return nil
}

type TransferRequest struct {
	FromAgentID string `json:"from_agent_id"`
	ToAgentID   string `json:"to_agent_id"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`

	from id.AgentID
	to   id.AgentID
}

func (r *TransferRequest) Normalize() {
	r.FromAgentID = strings.TrimSpace(r.FromAgentID)
	r.ToAgentID = strings.TrimSpace(r.ToAgentID)
	r.Reason = strings.TrimSpace(r.Reason)
}

// Validate parses both agent ids; domain rules are checked by the service.
func (r *TransferRequest) Validate() error {
	from, err := id.ParseAgentID(r.FromAgentID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "from_agent_id: "+err.Error())
	}
	to, err := id.ParseAgentID(r.ToAgentID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "to_agent_id: "+err.Error())
	}
	if r.Amount == 0 {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount, "amount is required")
	}
	r.from, r.to = from, to
	return nil
}

type OverrideRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	BalanceType string           `json:"balance_type"`
	Reason      string           `json:"reason"`
}

func (r *OverrideRequest) Normalize() {
	r.BalanceType = strings.ToLower(strings.TrimSpace(r.BalanceType))
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *OverrideRequest) Validate() error {
	if r.Amount == nil {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount, "amount is required")
	}
	return nil
}

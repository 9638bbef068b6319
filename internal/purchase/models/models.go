package models

import (
	"time"

	ledgermodels "coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
)

// Status is the lifecycle state of a coin purchase request.
//
//	pending ──┐
//	          ├──> confirmed (terminal)
//	verifying ┘└─> rejected  (terminal)
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerifying, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// OpenStatuses are the states an admin can still act on.
var OpenStatuses = []Status{StatusPending, StatusVerifying}

const (
	ReasonPurchaseNotFound = "PURCHASE_NOT_FOUND"
	ReasonAlreadyApproved  = "ALREADY_APPROVED"
	ReasonAlreadyRejected  = "ALREADY_REJECTED"
	ReasonMissingTxHash    = "MISSING_TX_HASH"
	ReasonInvalidStatus    = "INVALID_STATUS"
)

// Purchase is an agent's request to buy coins, settled off-platform and
// proven by TxHash.
type Purchase struct {
	ID              id.PurchaseID `json:"id"`
	AgentID         id.AgentID    `json:"agent_id"`
	Quantity        int64         `json:"quantity"`
	Status          Status        `json:"status"`
	TxHash          string        `json:"tx_hash,omitempty"`
	ApprovedBy      *id.UserID    `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CanApprove reports why the purchase cannot be confirmed, if it cannot.
func (p *Purchase) CanApprove() error {
	switch p.Status {
	case StatusConfirmed:
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyApproved, "purchase already approved")
	case StatusRejected:
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyRejected, "cannot approve rejected purchase")
	}
	if p.TxHash == "" {
		return dErrors.NewWithReason(dErrors.CodeValidation, ReasonMissingTxHash, "no transaction hash provided")
	}
	return nil
}

// CanReject reports why the purchase cannot be rejected, if it cannot.
func (p *Purchase) CanReject() error {
	switch p.Status {
	case StatusConfirmed:
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyApproved, "cannot reject approved purchase")
	case StatusRejected:
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyRejected, "purchase already rejected")
	}
	return nil
}

// Transition carries the columns written alongside a status change.
type Transition struct {
	To              Status
	ApprovedBy      id.UserID
	At              time.Time
	Notes           string
	RejectionReason string
}

// ListFilter selects purchases for admin listings. Empty Statuses means any.
type ListFilter struct {
	Statuses []Status
	AgentID  *id.AgentID
	Limit    int
	Offset   int
}

// Page is one page of a purchase listing with the unpaginated total.
type Page struct {
	Purchases []Purchase `json:"purchases"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// Stats summarizes purchase-driven coin issuance.
type Stats struct {
	TotalCoinsIssued int64 `json:"total_coins_issued"`
	ConfirmedCount   int64 `json:"total_purchases"`
	PendingCount     int64 `json:"pending_purchase_requests"`
}

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ApprovalResult is a confirmed purchase with the credit it produced.
type ApprovalResult struct {
	Purchase     Purchase                   `json:"purchase"`
	AgentBalance ledgermodels.BalanceChange `json:"agent_balance"`
	TotalStocked int64                      `json:"total_coins_stocked"`
}

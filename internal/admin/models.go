package admin

import (
	"time"

	"github.com/google/uuid"

	dErrors "coinledger/pkg/domain-errors"
)

// EntityKind names a record type that can be force-deleted. The set is closed;
// each kind maps to one guarded delete.
type EntityKind string

const (
	KindCoinPurchaseRequest EntityKind = "coin_purchase_request"
	KindBulkDonation        EntityKind = "bulk_donation"
)

var deletableKinds = []EntityKind{KindCoinPurchaseRequest, KindBulkDonation}

const (
	ReasonUnknownEntityKind = "UNKNOWN_ENTITY_KIND"
	ReasonRecordNotFound    = "RECORD_NOT_FOUND"
	ReasonRecordInUse       = "RECORD_NOT_DELETABLE"
	ReasonDeleteReason      = "DELETE_REASON_REQUIRED"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
	maxDeleteReason   = 500
)

func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range deletableKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", dErrors.NewWithReason(dErrors.CodeValidation, ReasonUnknownEntityKind, "unsupported record kind: "+s)
}

// CoinStats is the coin supply report.
type CoinStats struct {
	TotalAgentCoins         int64 `json:"total_coins_in_circulation_agents"`
	TotalUserCoins          int64 `json:"total_coins_in_circulation_users"`
	TotalCoinsIssued        int64 `json:"total_coins_issued"`
	ConfirmedPurchases      int64 `json:"total_purchases"`
	PendingPurchaseRequests int64 `json:"pending_purchase_requests"`
	AgentCount              int64 `json:"agent_count"`
}

// DeletedRecord describes what a force delete removed.
type DeletedRecord struct {
	Kind      EntityKind     `json:"kind"`
	ID        uuid.UUID      `json:"id"`
	Status    string         `json:"status"`
	Snapshot  map[string]any `json:"snapshot"`
	DeletedAt time.Time      `json:"deleted_at"`
}

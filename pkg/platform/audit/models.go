package audit

import (
	"context"
	"time"

	id "coinledger/pkg/domain"
)

// EventCategory classifies audit records by their primary purpose.
// This enables different retention policies and routing downstream of the outbox.
type EventCategory string

const (
	// CategoryCompliance covers balance mutations and purchase decisions.
	// These require tamper-evident storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers privileged escape hatches (overrides, force deletes)
	// that security review monitors.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers non-financial lifecycle events.
	CategoryOperations EventCategory = "operations"
)

// Operation names the kind of change an audit record describes.
type Operation string

const (
	OpCoinMint              Operation = "coin_mint"
	OpCoinBurn              Operation = "coin_burn"
	OpCoinTransfer          Operation = "coin_transfer"
	OpPurchaseApproved      Operation = "coin_purchase_approved"
	OpPurchaseRejected      Operation = "coin_purchase_rejected"
	OpBalanceOverride       Operation = "user_balance_override"
	OpBulkDonationCreated   Operation = "bulk_donation_created"
	OpBulkDonationProcessed Operation = "bulk_donation_processed"
	OpRecordForceDeleted    Operation = "record_force_deleted"
	OpWalletCreated         Operation = "crypto_wallet_created"
	OpWalletDeactivated     Operation = "crypto_wallet_deactivated"
)

// operationCategories maps each operation to its category.
var operationCategories = map[Operation]EventCategory{
	OpCoinMint:              CategoryCompliance,
	OpCoinBurn:              CategoryCompliance,
	OpCoinTransfer:          CategoryCompliance,
	OpPurchaseApproved:      CategoryCompliance,
	OpPurchaseRejected:      CategoryCompliance,
	OpBulkDonationProcessed: CategoryCompliance,

	OpBalanceOverride:    CategorySecurity,
	OpRecordForceDeleted: CategorySecurity,
	OpWalletCreated:      CategorySecurity,
	OpWalletDeactivated:  CategorySecurity,

	OpBulkDonationCreated: CategoryOperations,
}

// Category returns the EventCategory for this operation.
// Unknown operations default to CategoryOperations.
func (o Operation) Category() EventCategory {
	if cat, ok := operationCategories[o]; ok {
		return cat
	}
	return CategoryOperations
}

// Payload carries the before/after values of a change. OldValue and NewValue
// are scalars for single-entity changes and keyed objects for multi-entity
// changes such as transfers.
type Payload struct {
	OldValue any            `json:"old_value,omitempty"`
	NewValue any            `json:"new_value,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Record is one append-only audit entry. Digest is a SHA3-256 over the
// canonical encoding of every other field and is set by Seal.
type Record struct {
	ID          id.AuditRecordID `json:"id"`
	ActorID     id.UserID        `json:"actor_id"`
	Operation   Operation        `json:"operation"`
	TargetID    string           `json:"target_id"`
	Payload     Payload          `json:"payload"`
	Timestamp   time.Time        `json:"timestamp"`
	RequestID   string           `json:"request_id,omitempty"`
	ClientIP    string           `json:"client_ip,omitempty"`
	ActorDevice string           `json:"actor_device,omitempty"`
	Digest      string           `json:"digest"`
}

// Category returns the category derived from the record's operation.
func (r Record) Category() EventCategory { return r.Operation.Category() }

// Store persists audit records. Records are append-only; the interface has
// no update or delete.
type Store interface {
	// Append writes the record inside the caller's transaction when one is
	// present in ctx.
	Append(ctx context.Context, record Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	ListByTarget(ctx context.Context, targetID string) ([]Record, error)
}

// OutboxEntry is a record awaiting publication to the event stream.
type OutboxEntry struct {
	ID        int64
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Outbox is implemented by stores that keep a publication queue next to the
// records. ClaimBatch must be called inside a transaction; claimed entries
// stay locked until the transaction ends.
type Outbox interface {
	ClaimBatch(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}

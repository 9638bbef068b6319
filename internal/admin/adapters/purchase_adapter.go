package adapters

import (
	"context"

	"github.com/google/uuid"

	"coinledger/internal/admin"
	purchasemodels "coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
)

// PurchaseStore is the slice of the purchase store the admin deleter needs.
type PurchaseStore interface {
	DeleteUnconfirmed(ctx context.Context, purchaseID id.PurchaseID) (*purchasemodels.Purchase, error)
}

// PurchaseDeleter adapts the purchase store to admin's Deleter. Confirmed
// purchases are never deleted.
type PurchaseDeleter struct {
	store PurchaseStore
}

func NewPurchaseDeleter(store PurchaseStore) *PurchaseDeleter {
	return &PurchaseDeleter{store: store}
}

func (d *PurchaseDeleter) Delete(ctx context.Context, recordID uuid.UUID) (*admin.DeletedRecord, error) {
	p, err := d.store.DeleteUnconfirmed(ctx, id.PurchaseID(recordID))
	if err != nil {
		return nil, err
	}
	return &admin.DeletedRecord{
		Kind:   admin.KindCoinPurchaseRequest,
		ID:     recordID,
		Status: string(p.Status),
		Snapshot: map[string]any{
			"agent_id": p.AgentID.String(),
			"quantity": p.Quantity,
			"tx_hash":  p.TxHash,
		},
	}, nil
}

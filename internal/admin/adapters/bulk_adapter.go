package adapters

import (
	"context"

	"github.com/google/uuid"

	"coinledger/internal/admin"
	bulkmodels "coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
)

type BulkStore interface {
	DeletePending(ctx context.Context, bulkID id.BulkDonationID) (*bulkmodels.BulkDonation, error)
}

// BulkDeleter adapts the bulk store to admin's Deleter. Only pending bulk
// donations, which have no donations yet, can be removed.
type BulkDeleter struct {
	store BulkStore
}

func NewBulkDeleter(store BulkStore) *BulkDeleter {
	return &BulkDeleter{store: store}
}

func (d *BulkDeleter) Delete(ctx context.Context, recordID uuid.UUID) (*admin.DeletedRecord, error) {
	b, err := d.store.DeletePending(ctx, id.BulkDonationID(recordID))
	if err != nil {
		return nil, err
	}
	return &admin.DeletedRecord{
		Kind:   admin.KindBulkDonation,
		ID:     recordID,
		Status: string(b.Status),
		Snapshot: map[string]any{
			"sponsor_id":      b.SponsorID.String(),
			"total_amount":    b.TotalAmount,
			"recipient_count": b.RecipientCount,
		},
	}, nil
}

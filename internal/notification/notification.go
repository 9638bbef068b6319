// Package notification delivers post-commit notices about ledger events to
// the people they concern. Delivery never affects the ledger outcome.
package notification

import (
	"context"
	"time"
)

type Kind string

const (
	KindPurchaseApproved      Kind = "coin_purchase_approved"
	KindPurchaseRejected      Kind = "coin_purchase_rejected"
	KindBulkDonationProcessed Kind = "bulk_donation_processed"
)

// Notification is one message for one recipient.
type Notification struct {
	RecipientID string         `json:"recipient_id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Noop drops every notification. Used when no transport is configured.
type Noop struct{}

func (Noop) Notify(context.Context, Notification) error { return nil }

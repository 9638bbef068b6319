package models

import (
	"time"

	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
)

type DistributionType string

const (
	DistributionEqual    DistributionType = "equal"
	DistributionWeighted DistributionType = "weighted"
)

func (t DistributionType) IsValid() bool {
	return t == DistributionEqual || t == DistributionWeighted
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

const (
	ReasonBulkDonationNotFound   = "BULK_DONATION_NOT_FOUND"
	ReasonAlreadyProcessed       = "ALREADY_PROCESSED"
	ReasonInsufficientRecipients = "INSUFFICIENT_ELIGIBLE_RECIPIENTS"
	ReasonInvalidAmount          = "INVALID_AMOUNT"
	ReasonInvalidRecipientCount  = "INVALID_RECIPIENT_COUNT"
	ReasonInvalidDistribution    = "INVALID_DISTRIBUTION_TYPE"
	ReasonSponsorNotFound        = "SPONSOR_NOT_FOUND"
)

const (
	// MinTrustScore is the eligibility floor for bulk recipients.
	MinTrustScore = 3.0
	// OversampleFactor sizes the candidate pool relative to the requested count.
	OversampleFactor  = 2
	MaxRecipientCount = 1000
	MaxTotalAmount    = 100_000_000
)

// BulkDonation is a sponsor's amount to be split across several recipients
// in one processing step. Processed is terminal.
type BulkDonation struct {
	ID                   id.BulkDonationID `json:"id"`
	SponsorID            id.UserID         `json:"sponsor_id"`
	TotalAmount          int64             `json:"total_amount"`
	RecipientCount       int               `json:"recipient_count"`
	DistributionType     DistributionType  `json:"distribution_type"`
	Status               Status            `json:"status"`
	ActualRecipientCount int               `json:"actual_recipient_count"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// CanProcess returns a coded refusal when the donation was already split.
func (b *BulkDonation) CanProcess() error {
	if b.Status == StatusProcessed {
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyProcessed, "bulk donation already processed")
	}
	return nil
}

// Donation is one recipient's share. BulkDonationID is nil for ordinary
// donations.
type Donation struct {
	ID             id.DonationID      `json:"id"`
	DonorID        id.UserID          `json:"donor_id"`
	RecipientID    id.UserID          `json:"recipient_id"`
	Amount         int64              `json:"amount"`
	BulkDonationID *id.BulkDonationID `json:"bulk_donation_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Detail is a bulk donation together with the donations it produced.
type Detail struct {
	BulkDonation
	Donations []Donation `json:"donations"`
}

type CreateRequest struct {
	SponsorID        id.UserID
	TotalAmount      int64
	RecipientCount   int
	DistributionType DistributionType
}

package handler

import (
	"strings"

	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
)

type CreateRequest struct {
	SponsorID        string `json:"sponsor_id"`
	TotalAmount      int64  `json:"total_amount"`
	RecipientCount   int    `json:"recipient_count"`
	DistributionType string `json:"distribution_type"`

	sponsor id.UserID
}

func (r *CreateRequest) Normalize() {
	r.SponsorID = strings.TrimSpace(r.SponsorID)
	r.DistributionType = strings.ToLower(strings.TrimSpace(r.DistributionType))
}

func (r *CreateRequest) Validate() error {
	if r.SponsorID != "" {
		sponsor, err := id.ParseUserID(r.SponsorID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "sponsor_id must be a valid id")
		}
		r.sponsor = sponsor
	}
	if r.TotalAmount <= 0 {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount, "total_amount must be positive")
	}
	if r.RecipientCount < 1 {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidRecipientCount, "recipient_count must be at least 1")
	}
	return nil
}

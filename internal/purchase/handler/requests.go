package handler

import (
	"net/url"
	"strconv"
	"strings"

	"coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	pstrings "coinledger/pkg/platform/strings"
)

const maxNoteLength = 1000

type ApproveRequest struct {
	Notes string `json:"notes"`
}

func (r *ApproveRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *ApproveRequest) Validate() error {
	if len(r.Notes) > maxNoteLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 1000 characters")
	}
	return nil
}

type RejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

func (r *RejectRequest) Normalize() {
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
}

func (r *RejectRequest) Validate() error {
	if len(r.RejectionReason) > maxNoteLength {
		return dErrors.New(dErrors.CodeValidation, "rejection_reason must be at most 1000 characters")
	}
	return nil
}

func parsePage(q url.Values) (limit, offset int, err error) {
	if limit, err = parseNonNegative(q, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = parseNonNegative(q, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseNonNegative(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, key+" must be a non-negative integer")
	}
	return n, nil
}

func parseListFilter(q url.Values) (models.ListFilter, error) {
	limit, offset, err := parsePage(q)
	if err != nil {
		return models.ListFilter{}, err
	}
	filter := models.ListFilter{Limit: limit, Offset: offset}
	for _, status := range pstrings.SplitListLower(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, models.Status(status))
	}
	if raw := q.Get("agent_id"); raw != "" {
		agentID, err := id.ParseAgentID(raw)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.AgentID = &agentID
	}
	return filter, nil
}

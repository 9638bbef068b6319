// Package audit serves read access to the audit log. Writes go through
// pkg/platform/audit/publishers/compliance.
package audit

import (
	"context"
	"errors"

	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Reader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Record, error)
	ListByTarget(ctx context.Context, targetID string) ([]audit.Record, error)
}

// Entry is a stored record plus whether its digest still matches.
type Entry struct {
	audit.Record
	Verified bool `json:"verified"`
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) (*Service, error) {
	if reader == nil {
		return nil, errors.New("audit service requires a reader")
	}
	return &Service{reader: reader}, nil
}

// ListRecent returns the newest records first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	records, err := s.reader.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit records")
	}
	return verify(records), nil
}

// ListByTarget returns every record for one entity in the order written.
func (s *Service) ListByTarget(ctx context.Context, targetID string) ([]Entry, error) {
	if targetID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "target id is required")
	}
	records, err := s.reader.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit records")
	}
	return verify(records), nil
}

func verify(records []audit.Record) []Entry {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{Record: r, Verified: audit.Verify(r)}
	}
	return entries
}

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermodels "coinledger/internal/ledger/models"
	purchasemodels "coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

var tracer = otel.Tracer("coinledger/admin")

type LedgerTotals interface {
	Totals(ctx context.Context) (ledgermodels.Totals, error)
}

type PurchaseStats interface {
	Stats(ctx context.Context) (purchasemodels.Stats, error)
}

// Deleter removes one record of a kind if its guard allows it. It returns
// sentinel.ErrNotFound or sentinel.ErrInvalidState otherwise.
type Deleter interface {
	Delete(ctx context.Context, recordID uuid.UUID) (*DeletedRecord, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, record audit.Record) error
}

// Service serves the coin supply report and the guarded force delete.
type Service struct {
	ledger    LedgerTotals
	purchases PurchaseStats
	deleters  map[EntityKind]Deleter
	tx        txcontext.Runner
	auditor   AuditPublisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New requires a Deleter for every EntityKind.
func New(ledger LedgerTotals, purchases PurchaseStats, deleters map[EntityKind]Deleter, runner txcontext.Runner, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if ledger == nil || purchases == nil || runner == nil || auditor == nil {
		return nil, errors.New("admin service requires ledger, purchases, runner and auditor")
	}
	for _, kind := range deletableKinds {
		if deleters[kind] == nil {
			return nil, fmt.Errorf("admin service requires a deleter for %s", kind)
		}
	}
	s := &Service{
		ledger:    ledger,
		purchases: purchases,
		deleters:  deleters,
		tx:        runner,
		auditor:   auditor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) CoinStats(ctx context.Context) (*CoinStats, error) {
	totals, err := s.ledger.Totals(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.purchases.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &CoinStats{
		TotalAgentCoins:         totals.AgentCoins,
		TotalUserCoins:          totals.UserCoins,
		TotalCoinsIssued:        stats.TotalCoinsIssued,
		ConfirmedPurchases:      stats.ConfirmedCount,
		PendingPurchaseRequests: stats.PendingCount,
		AgentCount:              totals.AgentCount,
	}, nil
}

// ForceDelete removes a record through the guarded delete for its kind and
// audits the removal in the same transaction.
func (s *Service) ForceDelete(ctx context.Context, actorID id.UserID, kind EntityKind, recordID uuid.UUID, reason string) (result *DeletedRecord, err error) {
	ctx, span := tracer.Start(ctx, "admin.ForceDelete", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("record_id", recordID.String()),
	))
	defer func() { endSpan(span, err) }()

	deleter, ok := s.deleters[kind]
	if !ok {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonUnknownEntityKind, "unsupported record kind: "+string(kind))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > maxDeleteReason {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonDeleteReason, "a reason of at most 500 characters is required")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		deleted, err := deleter.Delete(ctx, recordID)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.NewWithReason(dErrors.CodeNotFound, ReasonRecordNotFound, string(kind)+" not found")
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.NewWithReason(dErrors.CodeConflict, ReasonRecordInUse, string(kind)+" can no longer be deleted")
			}
			return fmt.Errorf("delete %s: %w", kind, err)
		}
		deleted.DeletedAt = requestcontext.Now(ctx)
		result = deleted

		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   actorID,
			Operation: audit.OpRecordForceDeleted,
			TargetID:  recordID.String(),
			Payload: audit.Payload{
				OldValue: deleted.Snapshot,
				NewValue: nil,
				Reason:   reason,
				Extra: map[string]any{
					"kind":   string(kind),
					"status": deleted.Status,
				},
			},
		})
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete record")
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, string(audit.OpRecordForceDeleted),
			"kind", string(kind),
			"record_id", recordID.String(),
			"actor_id", actorID.String(),
			"reason", reason,
			"event", string(audit.OpRecordForceDeleted),
			"log_type", "audit",
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

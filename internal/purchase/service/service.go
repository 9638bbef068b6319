package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermodels "coinledger/internal/ledger/models"
	"coinledger/internal/notification"
	"coinledger/internal/purchase/metrics"
	"coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

var tracer = otel.Tracer("coinledger/purchase")

type Store interface {
	Get(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error)
	GetForUpdate(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error)
	Transition(ctx context.Context, purchaseID id.PurchaseID, from []models.Status, t models.Transition) (*models.Purchase, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Purchase, int, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// Crediter adds purchased coins to an agent inside the caller's transaction.
type Crediter interface {
	CreditAgent(ctx context.Context, agentID id.AgentID, amount int64) (*ledgermodels.MintResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, record audit.Record) error
}

type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) error
}

// Service drives the purchase approval state machine. Approving a purchase
// confirms it, credits the agent and writes the audit record in one
// transaction; the conditional status update makes the credit happen once.
type Service struct {
	store    Store
	tx       txcontext.Runner
	crediter Crediter
	auditor  AuditPublisher
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier sets the post-commit notifier. Wrap slow transports in
// notification.Async.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, runner txcontext.Runner, crediter Crediter, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil || runner == nil || crediter == nil || auditor == nil {
		return nil, errors.New("purchase service requires store, runner, crediter and auditor")
	}
	s := &Service{
		store:    store,
		tx:       runner,
		crediter: crediter,
		auditor:  auditor,
		notifier: notification.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Approve confirms a pending or verifying purchase and credits its quantity
// to the agent.
func (s *Service) Approve(ctx context.Context, purchaseID id.PurchaseID, approverID id.UserID, notes string) (result *models.ApprovalResult, err error) {
	ctx, span := tracer.Start(ctx, "purchase.Approve", trace.WithAttributes(
		attribute.String("purchase_id", purchaseID.String()),
	))
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return translateLoadErr(err)
		}
		if err := p.CanApprove(); err != nil {
			return err
		}

		confirmed, err := s.store.Transition(ctx, purchaseID, models.OpenStatuses, models.Transition{
			To:         models.StatusConfirmed,
			ApprovedBy: approverID,
			At:         requestcontext.Now(ctx),
			Notes:      notes,
		})
		if err != nil {
			return s.translateTransitionErr(ctx, purchaseID, err, (*models.Purchase).CanApprove)
		}

		credit, err := s.crediter.CreditAgent(ctx, confirmed.AgentID, confirmed.Quantity)
		if err != nil {
			return err
		}

		result = &models.ApprovalResult{
			Purchase:     *confirmed,
			AgentBalance: credit.Balance,
			TotalStocked: credit.TotalStocked,
		}
		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   approverID,
			Operation: audit.OpPurchaseApproved,
			TargetID:  purchaseID.String(),
			Payload: audit.Payload{
				OldValue: credit.Balance.Old,
				NewValue: credit.Balance.New,
				Reason:   notes,
				Extra: map[string]any{
					"agent_id":            confirmed.AgentID.String(),
					"quantity":            confirmed.Quantity,
					"tx_hash":             confirmed.TxHash,
					"previous_status":     string(p.Status),
					"total_coins_stocked": credit.TotalStocked,
				},
			},
		})
	})
	if err != nil {
		s.refused(err)
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve purchase")
	}

	s.logAudit(ctx, string(audit.OpPurchaseApproved),
		"purchase_id", purchaseID.String(),
		"agent_id", result.Purchase.AgentID.String(),
		"quantity", result.Purchase.Quantity,
		"new_balance", result.AgentBalance.New,
	)
	if s.metrics != nil {
		s.metrics.IncrementApproved(result.Purchase.Quantity)
	}
	s.notify(ctx, notification.Notification{
		RecipientID: result.Purchase.AgentID.String(),
		Kind:        notification.KindPurchaseApproved,
		Title:       "Coin Purchase Approved",
		Body:        fmt.Sprintf("Your purchase of %d coins has been approved!", result.Purchase.Quantity),
		Data: map[string]any{
			"purchase_id": purchaseID.String(),
			"quantity":    result.Purchase.Quantity,
			"new_balance": result.AgentBalance.New,
		},
		CreatedAt: requestcontext.Now(ctx),
	})
	return result, nil
}

// Reject moves an open purchase to rejected. No balance changes.
func (s *Service) Reject(ctx context.Context, purchaseID id.PurchaseID, approverID id.UserID, reason string) (result *models.Purchase, err error) {
	ctx, span := tracer.Start(ctx, "purchase.Reject", trace.WithAttributes(
		attribute.String("purchase_id", purchaseID.String()),
	))
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return translateLoadErr(err)
		}
		if err := p.CanReject(); err != nil {
			return err
		}

		rejected, err := s.store.Transition(ctx, purchaseID, models.OpenStatuses, models.Transition{
			To:              models.StatusRejected,
			ApprovedBy:      approverID,
			At:              requestcontext.Now(ctx),
			RejectionReason: reason,
		})
		if err != nil {
			return s.translateTransitionErr(ctx, purchaseID, err, (*models.Purchase).CanReject)
		}
		result = rejected
		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   approverID,
			Operation: audit.OpPurchaseRejected,
			TargetID:  purchaseID.String(),
			Payload: audit.Payload{
				OldValue: string(p.Status),
				NewValue: string(models.StatusRejected),
				Reason:   reason,
				Extra: map[string]any{
					"agent_id": rejected.AgentID.String(),
					"quantity": rejected.Quantity,
				},
			},
		})
	})
	if err != nil {
		s.refused(err)
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reject purchase")
	}

	s.logAudit(ctx, string(audit.OpPurchaseRejected),
		"purchase_id", purchaseID.String(),
		"agent_id", result.AgentID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementRejected()
	}
	s.notify(ctx, notification.Notification{
		RecipientID: result.AgentID.String(),
		Kind:        notification.KindPurchaseRejected,
		Title:       "Coin Purchase Rejected",
		Body:        "Your purchase request was rejected: " + reason,
		Data:        map[string]any{"purchase_id": purchaseID.String()},
		CreatedAt:   requestcontext.Now(ctx),
	})
	return result, nil
}

// ListPending returns open purchases (pending or verifying), newest first.
func (s *Service) ListPending(ctx context.Context, limit, offset int) (*models.Page, error) {
	return s.List(ctx, models.ListFilter{Statuses: models.OpenStatuses, Limit: limit, Offset: offset})
}

// List returns purchases matching filter, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (*models.Page, error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidStatus, "unknown purchase status: "+string(st))
		}
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)

	purchases, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list purchases")
	}
	return &models.Page{Purchases: purchases, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) Get(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	p, err := s.store.Get(ctx, purchaseID)
	if err != nil {
		return nil, translateLoadErr(err)
	}
	return p, nil
}

func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load purchase stats")
	}
	return st, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	if limit > models.MaxListLimit {
		limit = models.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func translateLoadErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonPurchaseNotFound, "purchase not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load purchase")
}

// translateTransitionErr explains a lost conditional update by re-reading the
// row that won.
func (s *Service) translateTransitionErr(ctx context.Context, purchaseID id.PurchaseID, err error, check func(*models.Purchase) error) error {
	if !errors.Is(err, sentinel.ErrConflict) {
		return translateLoadErr(err)
	}
	current, getErr := s.store.Get(ctx, purchaseID)
	if getErr != nil {
		return translateLoadErr(getErr)
	}
	if reason := check(current); reason != nil {
		return reason
	}
	return dErrors.New(dErrors.CodeConflict, "purchase was modified concurrently")
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to send purchase notification",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) refused(err error) {
	if s.metrics == nil {
		return
	}
	if de, ok := dErrors.As(err); ok && de.Reason != "" {
		s.metrics.IncrementRefusal(de.Reason)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

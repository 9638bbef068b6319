package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coinledger/internal/bulk/metrics"
	"coinledger/internal/bulk/models"
	ledgermodels "coinledger/internal/ledger/models"
	"coinledger/internal/notification"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

var tracer = otel.Tracer("coinledger/bulk")

type Store interface {
	Create(ctx context.Context, b *models.BulkDonation) error
	Get(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error)
	GetForUpdate(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error)
	CreateDonations(ctx context.Context, bulkID id.BulkDonationID, donations []models.Donation) error
	ListDonations(ctx context.Context, bulkID id.BulkDonationID) ([]models.Donation, error)
	MarkProcessed(ctx context.Context, bulkID id.BulkDonationID, actual int, at time.Time) (*models.BulkDonation, error)
}

// Directory reads user accounts for sponsor checks and recipient selection.
type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*ledgermodels.UserAccount, error)
	ListEligibleUsers(ctx context.Context, minTrust float64, limit int) ([]ledgermodels.UserAccount, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, record audit.Record) error
}

type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) error
}

// Service creates bulk donations and splits them into per-recipient
// donations. Processing selects recipients, writes every share and flips the
// status in one transaction holding the bulk row lock.
type Service struct {
	store     Store
	directory Directory
	tx        txcontext.Runner
	auditor   AuditPublisher
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, directory Directory, runner txcontext.Runner, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil || directory == nil || runner == nil || auditor == nil {
		return nil, errors.New("bulk service requires store, directory, runner and auditor")
	}
	s := &Service{
		store:     store,
		directory: directory,
		tx:        runner,
		auditor:   auditor,
		notifier:  notification.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create records a pending bulk donation for a sponsor.
func (s *Service) Create(ctx context.Context, actorID id.UserID, req models.CreateRequest) (result *models.BulkDonation, err error) {
	ctx, span := tracer.Start(ctx, "bulk.Create", trace.WithAttributes(
		attribute.String("sponsor_id", req.SponsorID.String()),
		attribute.Int64("total_amount", req.TotalAmount),
		attribute.Int("recipient_count", req.RecipientCount),
	))
	defer func() { endSpan(span, err) }()

	if req.DistributionType == "" {
		req.DistributionType = models.DistributionEqual
	}
	if err := validateCreate(req); err != nil {
		s.refused(err)
		return nil, err
	}

	b := &models.BulkDonation{
		ID:               id.BulkDonationID(uuid.New()),
		SponsorID:        req.SponsorID,
		TotalAmount:      req.TotalAmount,
		RecipientCount:   req.RecipientCount,
		DistributionType: req.DistributionType,
		Status:           models.StatusPending,
		CreatedAt:        requestcontext.Now(ctx),
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.directory.GetUser(ctx, req.SponsorID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonSponsorNotFound, "sponsor not found")
			}
			return fmt.Errorf("load sponsor: %w", err)
		}
		if err := s.store.Create(ctx, b); err != nil {
			return fmt.Errorf("create bulk donation: %w", err)
		}
		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   actorID,
			Operation: audit.OpBulkDonationCreated,
			TargetID:  b.ID.String(),
			Payload: audit.Payload{
				NewValue: string(b.Status),
				Extra: map[string]any{
					"sponsor_id":        b.SponsorID.String(),
					"total_amount":      b.TotalAmount,
					"recipient_count":   b.RecipientCount,
					"distribution_type": string(b.DistributionType),
				},
			},
		})
	})
	if err != nil {
		s.refused(err)
		return nil, internalUnlessCoded(err, "failed to create bulk donation")
	}

	s.logAudit(ctx, string(audit.OpBulkDonationCreated),
		"bulk_donation_id", b.ID.String(),
		"sponsor_id", b.SponsorID.String(),
		"total_amount", b.TotalAmount,
		"recipient_count", b.RecipientCount,
	)
	return b, nil
}

func validateCreate(req models.CreateRequest) error {
	if req.SponsorID.IsNil() {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonSponsorNotFound, "sponsor is required")
	}
	if req.TotalAmount <= 0 || req.TotalAmount > models.MaxTotalAmount {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
			fmt.Sprintf("total amount must be between 1 and %d", models.MaxTotalAmount))
	}
	if req.RecipientCount < 1 || req.RecipientCount > models.MaxRecipientCount {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidRecipientCount,
			fmt.Sprintf("recipient count must be between 1 and %d", models.MaxRecipientCount))
	}
	if !req.DistributionType.IsValid() {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidDistribution,
			"distribution type must be equal or weighted")
	}
	return nil
}

// SelectEligibleRecipients returns up to OversampleFactor*count receiving,
// non-banned users with trust at least MinTrustScore, best first. exclude is
// left out of the pool.
func (s *Service) SelectEligibleRecipients(ctx context.Context, count int, exclude id.UserID) ([]ledgermodels.UserAccount, error) {
	if count < 1 {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidRecipientCount, "recipient count must be at least 1")
	}
	poolSize := count * models.OversampleFactor
	candidates, err := s.directory.ListEligibleUsers(ctx, models.MinTrustScore, poolSize+1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to select recipients")
	}
	pool := make([]ledgermodels.UserAccount, 0, poolSize)
	for _, u := range candidates {
		if u.ID == exclude {
			continue
		}
		if len(pool) == poolSize {
			break
		}
		pool = append(pool, u)
	}
	return pool, nil
}

// Process splits a pending bulk donation across the best eligible recipients.
func (s *Service) Process(ctx context.Context, actorID id.UserID, bulkID id.BulkDonationID) (result *models.Detail, err error) {
	ctx, span := tracer.Start(ctx, "bulk.Process", trace.WithAttributes(
		attribute.String("bulk_donation_id", bulkID.String()),
	))
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.store.GetForUpdate(ctx, bulkID)
		if err != nil {
			return translateLoadErr(err)
		}
		if err := b.CanProcess(); err != nil {
			return err
		}

		pool, err := s.SelectEligibleRecipients(ctx, b.RecipientCount, b.SponsorID)
		if err != nil {
			return err
		}
		if len(pool) < b.RecipientCount {
			return dErrors.NewWithReason(dErrors.CodeInsufficientRecipients, models.ReasonInsufficientRecipients,
				fmt.Sprintf("need %d eligible recipients, found %d", b.RecipientCount, len(pool)))
		}
		recipients := pool[:b.RecipientCount]

		shares, err := models.CalculateDistribution(b.TotalAmount, len(recipients), b.DistributionType)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		link := b.ID
		donations := make([]models.Donation, len(recipients))
		for i, r := range recipients {
			donations[i] = models.Donation{
				ID:             id.DonationID(uuid.New()),
				DonorID:        b.SponsorID,
				RecipientID:    r.ID,
				Amount:         shares[i],
				BulkDonationID: &link,
				CreatedAt:      now,
			}
		}
		if err := s.store.CreateDonations(ctx, b.ID, donations); err != nil {
			return fmt.Errorf("create donations: %w", err)
		}

		processed, err := s.store.MarkProcessed(ctx, b.ID, len(donations), now)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.NewWithReason(dErrors.CodeConflict, models.ReasonAlreadyProcessed, "bulk donation already processed")
			}
			return translateLoadErr(err)
		}
		result = &models.Detail{BulkDonation: *processed, Donations: donations}

		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   actorID,
			Operation: audit.OpBulkDonationProcessed,
			TargetID:  b.ID.String(),
			Payload: audit.Payload{
				OldValue: string(b.Status),
				NewValue: string(processed.Status),
				Extra: map[string]any{
					"sponsor_id":             b.SponsorID.String(),
					"total_amount":           b.TotalAmount,
					"recipient_count":        b.RecipientCount,
					"actual_recipient_count": processed.ActualRecipientCount,
					"distribution_type":      string(b.DistributionType),
				},
			},
		})
	})
	if err != nil {
		s.refused(err)
		return nil, internalUnlessCoded(err, "failed to process bulk donation")
	}

	s.logAudit(ctx, string(audit.OpBulkDonationProcessed),
		"bulk_donation_id", bulkID.String(),
		"sponsor_id", result.SponsorID.String(),
		"total_amount", result.TotalAmount,
		"actual_recipient_count", result.ActualRecipientCount,
	)
	if s.metrics != nil {
		s.metrics.ObserveProcessed(result.ActualRecipientCount, result.TotalAmount)
	}
	s.notify(ctx, notification.Notification{
		RecipientID: result.SponsorID.String(),
		Kind:        notification.KindBulkDonationProcessed,
		Title:       "Bulk Donation Processed",
		Body: fmt.Sprintf("Your bulk donation of %d coins was shared among %d recipients.",
			result.TotalAmount, result.ActualRecipientCount),
		Data: map[string]any{
			"bulk_donation_id":       bulkID.String(),
			"actual_recipient_count": result.ActualRecipientCount,
		},
		CreatedAt: requestcontext.Now(ctx),
	})
	return result, nil
}

// Get returns a bulk donation with the donations it produced.
func (s *Service) Get(ctx context.Context, bulkID id.BulkDonationID) (*models.Detail, error) {
	b, err := s.store.Get(ctx, bulkID)
	if err != nil {
		return nil, translateLoadErr(err)
	}
	donations, err := s.store.ListDonations(ctx, bulkID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donations")
	}
	return &models.Detail{BulkDonation: *b, Donations: donations}, nil
}

func translateLoadErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonBulkDonationNotFound, "bulk donation not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load bulk donation")
}

func internalUnlessCoded(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to send bulk donation notification",
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

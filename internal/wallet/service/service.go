package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coinledger/internal/wallet/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

var tracer = otel.Tracer("coinledger/wallet")

type Store interface {
	Create(ctx context.Context, w *models.CryptoWallet) error
	ListActive(ctx context.Context) ([]models.CryptoWallet, error)
	Deactivate(ctx context.Context, walletID id.CryptoWalletID, at time.Time) (*models.CryptoWallet, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, record audit.Record) error
}

// Service manages the payment addresses shown to agents buying coins.
type Service struct {
	store   Store
	tx      txcontext.Runner
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, runner txcontext.Runner, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil || runner == nil || auditor == nil {
		return nil, errors.New("wallet service requires store, runner and auditor")
	}
	s := &Service{store: store, tx: runner, auditor: auditor}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListActive returns the wallets agents may currently pay into.
func (s *Service) ListActive(ctx context.Context) ([]models.CryptoWallet, error) {
	wallets, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list crypto wallets")
	}
	return wallets, nil
}

// Create registers a new active wallet. A duplicate address is a conflict,
// including one that was deactivated.
func (s *Service) Create(ctx context.Context, actorID id.UserID, req models.CreateRequest) (result *models.CryptoWallet, err error) {
	ctx, span := tracer.Start(ctx, "wallet.Create", trace.WithAttributes(
		attribute.String("currency", string(req.Currency)),
		attribute.String("network", string(req.Network)),
	))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	w := &models.CryptoWallet{
		ID:        id.CryptoWalletID(uuid.New()),
		Currency:  req.Currency,
		Network:   req.Network,
		Address:   req.Address,
		QRCodeURL: req.QRCodeURL,
		IsActive:  true,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, w); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.NewWithReason(dErrors.CodeConflict, models.ReasonWalletExists, "wallet address already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create crypto wallet")
		}
		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   actorID,
			Operation: audit.OpWalletCreated,
			TargetID:  w.ID.String(),
			Payload: audit.Payload{
				NewValue: w.Address,
				Extra: map[string]any{
					"currency": string(w.Currency),
					"network":  string(w.Network),
				},
			},
		})
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create crypto wallet")
	}

	s.logAudit(ctx, string(audit.OpWalletCreated),
		"wallet_id", w.ID.String(),
		"currency", string(w.Currency),
		"network", string(w.Network),
	)
	return w, nil
}

// Deactivate hides a wallet from agents. The row is kept so its address
// stays reserved.
func (s *Service) Deactivate(ctx context.Context, actorID id.UserID, walletID id.CryptoWalletID) (result *models.CryptoWallet, err error) {
	ctx, span := tracer.Start(ctx, "wallet.Deactivate", trace.WithAttributes(
		attribute.String("wallet_id", walletID.String()),
	))
	defer func() { endSpan(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.store.Deactivate(ctx, walletID, requestcontext.Now(ctx))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonWalletNotFound, "crypto wallet not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate crypto wallet")
		}
		result = w
		return s.auditor.Emit(ctx, audit.Record{
			ActorID:   actorID,
			Operation: audit.OpWalletDeactivated,
			TargetID:  walletID.String(),
			Payload: audit.Payload{
				OldValue: true,
				NewValue: false,
				Extra:    map[string]any{"address": w.Address},
			},
		})
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate crypto wallet")
	}

	s.logAudit(ctx, string(audit.OpWalletDeactivated), "wallet_id", walletID.String())
	return result, nil
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

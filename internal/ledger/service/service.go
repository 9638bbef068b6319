package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coinledger/internal/ledger/metrics"
	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

var tracer = otel.Tracer("coinledger/ledger")

// Store is the balance persistence the service mutates. Every method must
// honor the transaction carried in ctx.
type Store interface {
	GetAgent(ctx context.Context, agentID id.AgentID) (*models.Agent, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.UserAccount, error)
	Increment(ctx context.Context, ref uuid.UUID, field models.Field, delta int64) (models.BalanceChange, error)
	IncrementWallet(ctx context.Context, userID id.UserID, delta decimal.Decimal) (models.WalletChange, error)
	LockAgents(ctx context.Context, ids ...id.AgentID) ([]id.AgentID, error)
	Totals(ctx context.Context) (models.Totals, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, record audit.Record) error
}

// Service performs coin mutations. Each mutation and its audit record commit
// together or not at all.
type Service struct {
	store   Store
	tx      txcontext.Runner
	auditor AuditPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
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

func New(store Store, runner txcontext.Runner, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{store: store, tx: runner, auditor: auditor}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mint issues new coins to an agent. Both the spendable balance and the
// lifetime stocked total grow by amount.
func (s *Service) Mint(ctx context.Context, agentID id.AgentID, amount int64, reason string) (result *models.MintResult, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Mint", trace.WithAttributes(
		attribute.String("agent_id", agentID.String()),
		attribute.Int64("amount", amount),
	))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if amount <= 0 || amount > models.MaxMintAmount {
		return nil, s.reject(audit.OpCoinMint, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
			"amount must be between 1 and 1,000,000"))
	}
	if err := validateReason(reason); err != nil {
		return nil, s.reject(audit.OpCoinMint, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		credited, err := s.CreditAgent(ctx, agentID, amount)
		if err != nil {
			return err
		}
		result = credited
		return s.auditor.Emit(ctx, audit.Record{
			Operation: audit.OpCoinMint,
			TargetID:  agentID.String(),
			Payload: audit.Payload{
				OldValue: credited.Balance.Old,
				NewValue: credited.Balance.New,
				Reason:   reason,
				Extra: map[string]any{
					"amount":              amount,
					"total_coins_stocked": credited.TotalStocked,
				},
			},
		})
	})
	if err != nil {
		return nil, s.reject(audit.OpCoinMint, internalUnlessCoded(err, "failed to mint coins"))
	}

	s.logAudit(ctx, string(audit.OpCoinMint),
		"agent_id", agentID.String(),
		"amount", amount,
		"old_balance", result.Balance.Old,
		"new_balance", result.Balance.New,
	)
	s.observe(audit.OpCoinMint, amount, start)
	return result, nil
}

// CreditAgent adds amount to an agent's balance and stocked total without
// writing an audit record. It must run inside the caller's transaction; the
// caller owns the audit record for the surrounding operation.
func (s *Service) CreditAgent(ctx context.Context, agentID id.AgentID, amount int64) (*models.MintResult, error) {
	if amount <= 0 {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount, "amount must be positive")
	}
	balance, err := s.store.Increment(ctx, uuid.UUID(agentID), models.FieldAgentCoins, amount)
	if err != nil {
		return nil, translateAgentErr(err, "failed to credit agent")
	}
	stocked, err := s.store.Increment(ctx, uuid.UUID(agentID), models.FieldAgentStocked, amount)
	if err != nil {
		return nil, translateAgentErr(err, "failed to update stocked total")
	}
	return &models.MintResult{
		AgentID:      agentID,
		Amount:       amount,
		Balance:      balance,
		TotalStocked: stocked.New,
	}, nil
}

// Burn destroys coins held by an agent. The stocked total is unchanged.
func (s *Service) Burn(ctx context.Context, agentID id.AgentID, amount int64, reason string) (result *models.MintResult, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Burn", trace.WithAttributes(
		attribute.String("agent_id", agentID.String()),
		attribute.Int64("amount", amount),
	))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if amount <= 0 {
		return nil, s.reject(audit.OpCoinBurn, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
			"amount must be positive"))
	}
	if err := validateReason(reason); err != nil {
		return nil, s.reject(audit.OpCoinBurn, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		balance, err := s.store.Increment(ctx, uuid.UUID(agentID), models.FieldAgentCoins, -amount)
		if err != nil {
			return translateAgentErr(err, "failed to burn coins")
		}
		result = &models.MintResult{AgentID: agentID, Amount: amount, Balance: balance}
		return s.auditor.Emit(ctx, audit.Record{
			Operation: audit.OpCoinBurn,
			TargetID:  agentID.String(),
			Payload: audit.Payload{
				OldValue: balance.Old,
				NewValue: balance.New,
				Reason:   reason,
				Extra:    map[string]any{"amount": amount},
			},
		})
	})
	if err != nil {
		return nil, s.reject(audit.OpCoinBurn, internalUnlessCoded(err, "failed to burn coins"))
	}

	s.logAudit(ctx, string(audit.OpCoinBurn),
		"agent_id", agentID.String(),
		"amount", amount,
		"old_balance", result.Balance.Old,
		"new_balance", result.Balance.New,
	)
	s.observe(audit.OpCoinBurn, amount, start)
	return result, nil
}

// Transfer moves coins between two agents. Both rows are locked in id order
// before either balance changes.
func (s *Service) Transfer(ctx context.Context, from, to id.AgentID, amount int64, reason string) (result *models.TransferResult, err error) {
	ctx, span := tracer.Start(ctx, "ledger.Transfer", trace.WithAttributes(
		attribute.String("from_agent_id", from.String()),
		attribute.String("to_agent_id", to.String()),
		attribute.Int64("amount", amount),
	))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if amount <= 0 {
		return nil, s.reject(audit.OpCoinTransfer, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
			"amount must be positive"))
	}
	if from == to {
		return nil, s.reject(audit.OpCoinTransfer, dErrors.NewWithReason(dErrors.CodeConflict, models.ReasonSameAgent,
			"cannot transfer to the same agent"))
	}
	if err := validateReason(reason); err != nil {
		return nil, s.reject(audit.OpCoinTransfer, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		found, err := s.store.LockAgents(ctx, from, to)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock agents")
		}
		if len(found) != 2 {
			return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonAgentNotFound, "one or both agents not found")
		}

		debit, err := s.store.Increment(ctx, uuid.UUID(from), models.FieldAgentCoins, -amount)
		if err != nil {
			return translateAgentErr(err, "failed to debit source agent")
		}
		credit, err := s.store.Increment(ctx, uuid.UUID(to), models.FieldAgentCoins, amount)
		if err != nil {
			return translateAgentErr(err, "failed to credit destination agent")
		}

		result = &models.TransferResult{
			FromAgentID: from,
			ToAgentID:   to,
			Amount:      amount,
			From:        debit,
			To:          credit,
		}
		return s.auditor.Emit(ctx, audit.Record{
			Operation: audit.OpCoinTransfer,
			TargetID:  from.String(),
			Payload: audit.Payload{
				OldValue: map[string]int64{"from": debit.Old, "to": credit.Old},
				NewValue: map[string]int64{"from": debit.New, "to": credit.New},
				Reason:   reason,
				Extra: map[string]any{
					"amount":        amount,
					"from_agent_id": from.String(),
					"to_agent_id":   to.String(),
				},
			},
		})
	})
	if err != nil {
		return nil, s.reject(audit.OpCoinTransfer, internalUnlessCoded(err, "failed to transfer coins"))
	}

	s.logAudit(ctx, string(audit.OpCoinTransfer),
		"from_agent_id", from.String(),
		"to_agent_id", to.String(),
		"amount", amount,
	)
	s.observe(audit.OpCoinTransfer, amount, start)
	return result, nil
}

// OverrideUserBalance applies a signed admin delta to a user's wallet or coin
// balance. Coin balances refuse to go negative; wallets may, and such results
// are flagged.
func (s *Service) OverrideUserBalance(ctx context.Context, userID id.UserID, amount decimal.Decimal, balanceType models.BalanceType, reason string) (result *models.OverrideResult, err error) {
	if balanceType == "" {
		balanceType = models.BalanceTypeWallet
	}
	ctx, span := tracer.Start(ctx, "ledger.OverrideUserBalance", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("balance_type", string(balanceType)),
		attribute.String("amount", amount.String()),
	))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if !balanceType.IsValid() {
		return nil, s.reject(audit.OpBalanceOverride, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidBalanceType,
			"balance_type must be wallet or coins"))
	}
	limit := decimal.NewFromInt(models.MaxOverrideAmount)
	if amount.Abs().GreaterThan(limit) {
		return nil, s.reject(audit.OpBalanceOverride, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
			"amount must be between -1,000,000 and 1,000,000"))
	}
	switch balanceType {
	case models.BalanceTypeCoins:
		if !amount.IsInteger() {
			return nil, s.reject(audit.OpBalanceOverride, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
				"coin amount must be a whole number"))
		}
	case models.BalanceTypeWallet:
		if !amount.Equal(amount.Round(2)) {
			return nil, s.reject(audit.OpBalanceOverride, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonInvalidAmount,
				"wallet amount supports at most two decimal places"))
		}
	}
	if err := validateReason(reason); err != nil {
		return nil, s.reject(audit.OpBalanceOverride, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res := &models.OverrideResult{UserID: userID, BalanceType: balanceType, Amount: amount}
		extra := map[string]any{
			"balance_type": string(balanceType),
			"amount":       amount.String(),
		}
		var oldValue, newValue any

		if balanceType == models.BalanceTypeCoins {
			change, err := s.store.Increment(ctx, uuid.UUID(userID), models.FieldUserCoins, amount.IntPart())
			if err != nil {
				return translateUserErr(err, "failed to override coin balance")
			}
			res.OldBalance = decimal.NewFromInt(change.Old)
			res.NewBalance = decimal.NewFromInt(change.New)
			oldValue, newValue = change.Old, change.New
		} else {
			change, err := s.store.IncrementWallet(ctx, userID, amount)
			if err != nil {
				return translateUserErr(err, "failed to override wallet balance")
			}
			res.OldBalance = change.Old
			res.NewBalance = change.New
			res.NegativeResult = change.New.IsNegative()
			if res.NegativeResult {
				extra["negative_result"] = true
			}
			oldValue, newValue = change.Old.String(), change.New.String()
		}

		result = res
		return s.auditor.Emit(ctx, audit.Record{
			Operation: audit.OpBalanceOverride,
			TargetID:  userID.String(),
			Payload: audit.Payload{
				OldValue: oldValue,
				NewValue: newValue,
				Reason:   reason,
				Extra:    extra,
			},
		})
	})
	if err != nil {
		return nil, s.reject(audit.OpBalanceOverride, internalUnlessCoded(err, "failed to override balance"))
	}

	if result.NegativeResult {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "wallet override left a negative balance",
				"user_id", userID.String(),
				"new_balance", result.NewBalance.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if s.metrics != nil {
			s.metrics.IncrementNegativeOverride()
		}
	}
	s.logAudit(ctx, string(audit.OpBalanceOverride),
		"user_id", userID.String(),
		"balance_type", string(balanceType),
		"amount", amount.String(),
		"old_balance", result.OldBalance.String(),
		"new_balance", result.NewBalance.String(),
	)
	s.observe(audit.OpBalanceOverride, 0, start)
	return result, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID id.AgentID) (*models.Agent, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, translateAgentErr(err, "failed to load agent")
	}
	return agent, nil
}

func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.UserAccount, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, translateUserErr(err, "failed to load user")
	}
	return user, nil
}

// Totals returns ledger-wide coin sums for reporting.
func (s *Service) Totals(ctx context.Context) (models.Totals, error) {
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return models.Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger totals")
	}
	return totals, nil
}

func validateReason(reason string) error {
	if len(reason) > models.MaxReasonLength {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonReasonTooLong, "reason must be at most 500 characters")
	}
	return nil
}

func translateAgentErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonAgentNotFound, "agent not found")
	case errors.Is(err, sentinel.ErrInsufficient):
		return dErrors.NewWithReason(dErrors.CodeInsufficientBalance, models.ReasonInsufficientBalance, "insufficient coin balance")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func translateUserErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonUserNotFound, "user not found")
	case errors.Is(err, sentinel.ErrInsufficient):
		return dErrors.NewWithReason(dErrors.CodeInsufficientBalance, models.ReasonInsufficientBalance, "coin balance cannot go below zero")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// internalUnlessCoded passes domain errors through and wraps anything else
// (commit failures, audit persistence) as internal.
func internalUnlessCoded(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) reject(op audit.Operation, err error) error {
	if s.metrics != nil {
		reason := "internal"
		if de, ok := dErrors.As(err); ok {
			reason = de.Reason
			if reason == "" {
				reason = string(de.Code)
			}
		}
		s.metrics.IncrementRejection(string(op), reason)
	}
	return err
}

func (s *Service) observe(op audit.Operation, coins int64, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(string(op), coins, start)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
		attributes = append(attributes, "actor_id", actor.String())
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

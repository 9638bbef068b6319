// Package compliance provides a fail-closed audit publisher for ledger changes.
//
// Publisher stamps each record with request metadata, seals it with a digest and
// writes it synchronously through the audit store. Called inside the business
// transaction, a failed write returns an error and the whole change rolls back.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "coinledger/pkg/domain"
	audit "coinledger/pkg/platform/audit"
	"coinledger/pkg/requestcontext"
)

// Publisher emits audit records with fail-closed semantics.
// All writes are synchronous - the caller blocks until persistence succeeds or fails.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills request metadata, seals and persists the record.
// Returns error if persistence fails - the caller MUST fail its operation.
func (p *Publisher) Emit(ctx context.Context, record audit.Record) error {
	start := time.Now()

	if record.Operation == "" {
		return fmt.Errorf("audit record requires Operation")
	}
	if record.TargetID == "" {
		return fmt.Errorf("audit record requires TargetID")
	}

	if record.ID.IsNil() {
		record.ID = id.AuditRecordID(uuid.New())
	}
	if record.ActorID.IsNil() {
		record.ActorID = requestcontext.ActorID(ctx)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = requestcontext.Now(ctx)
	}
	if record.RequestID == "" {
		record.RequestID = requestcontext.RequestID(ctx)
	}
	if record.ClientIP == "" {
		record.ClientIP = requestcontext.ClientIP(ctx)
	}
	if record.ActorDevice == "" {
		record.ActorDevice = requestcontext.ActorDevice(ctx)
	}

	sealed, err := audit.Seal(record)
	if err != nil {
		return fmt.Errorf("seal audit record: %w", err)
	}

	if err := p.store.Append(ctx, sealed); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"operation", record.Operation,
				"target_id", record.TargetID,
				"request_id", record.RequestID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(record.Operation)
	}

	return nil
}

// Close is a no-op for the synchronous compliance publisher.
func (p *Publisher) Close() error {
	return nil
}

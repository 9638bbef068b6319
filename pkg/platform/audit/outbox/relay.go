// Package outbox relays audit records from the transactional outbox table to
// the event stream.
package outbox

import (
	"context"
	"log/slog"
	"time"

	audit "coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/tx"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Message is one outbox entry ready for the broker.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes a batch synchronously. A nil error means every message
// was acknowledged.
type Producer interface {
	Produce(ctx context.Context, msgs []Message) error
}

// Relay polls the outbox, publishes claimed entries and marks them published
// in the same transaction that holds their row locks. A failed publish rolls
// back so entries are retried on the next tick; delivery is at-least-once.
type Relay struct {
	outbox    audit.Outbox
	runner    tx.Runner
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(outbox audit.Outbox, runner tx.Runner, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		runner:    runner,
		producer:  producer,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Errors are logged and retried on the
// next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					}
					break
				}
				// Drain backlog without waiting for the next tick.
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes at most one batch and returns how many entries it published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.ClaimBatch(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		msgs := make([]Message, 0, len(entries))
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, Message{
				Key:   []byte(e.Key),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type": e.EventType,
				},
			})
			ids = append(ids, e.ID)
		}

		if err := r.producer.Produce(ctx, msgs); err != nil {
			if r.metrics != nil {
				r.metrics.IncPublishFailures()
			}
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if r.metrics != nil && published > 0 {
		r.metrics.AddPublished(published)
	}
	return published, nil
}

package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncTimeout = 5 * time.Second
	defaultBufferSize   = 1024
	defaultWorkers      = 4
)

type queued struct {
	ctx context.Context
	n   Notification
}

// Async queues notifications on a bounded buffer drained by a fixed pool of
// workers, so callers return as soon as their transaction commits. When the
// buffer is full the notification is dropped. Failures are logged only.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	size    int
	workers int

	mu      sync.RWMutex
	closed  bool
	queue   chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type AsyncOption func(*Async)

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		a.logger = logger
	}
}

func WithMetrics(m *Metrics) AsyncOption {
	return func(a *Async) {
		a.metrics = m
	}
}

func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBuffer sets how many notifications may wait for a worker.
func WithBuffer(size int) AsyncOption {
	return func(a *Async) {
		if size > 0 {
			a.size = size
		}
	}
}

func WithWorkers(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewAsync starts the worker pool. Call Wait to drain it on shutdown.
func NewAsync(next Notifier, opts ...AsyncOption) *Async {
	a := &Async{
		next:    next,
		timeout: defaultAsyncTimeout,
		size:    defaultBufferSize,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan queued, a.size)
	for range a.workers {
		a.wg.Add(1)
		go a.work()
	}
	return a
}

// Notify always returns nil. Delivery is detached from the request's
// cancellation; a full buffer or a drained Async drops the notification.
func (a *Async) Notify(ctx context.Context, n Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.closed {
		select {
		case a.queue <- queued{ctx: context.WithoutCancel(ctx), n: n}:
			return nil
		default:
		}
	}
	a.dropped.Add(1)
	if a.metrics != nil {
		a.metrics.IncrementDropped(n.Kind)
	}
	if a.logger != nil {
		a.logger.WarnContext(ctx, "notification dropped",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"closed", a.closed,
		)
	}
	return nil
}

func (a *Async) work() {
	defer a.wg.Done()
	for item := range a.queue {
		a.deliver(item)
	}
}

func (a *Async) deliver(item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, a.timeout)
	defer cancel()

	if err := a.next.Notify(ctx, item.n); err != nil {
		if a.metrics != nil {
			a.metrics.IncrementFailed(item.n.Kind)
		}
		if a.logger != nil {
			a.logger.WarnContext(ctx, "notification delivery failed",
				"kind", item.n.Kind,
				"recipient_id", item.n.RecipientID,
				"error", err,
			)
		}
	}
}

// Dropped returns how many notifications were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Wait stops accepting notifications, delivers what is queued and returns
// once every worker has exited. Safe to call more than once.
func (a *Async) Wait() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "coinledger/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// SQLRunner runs units of work in a database/sql transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

type SQLOption func(*SQLRunner)

// WithTimeout bounds transactions whose context carries no deadline.
func WithTimeout(d time.Duration) SQLOption {
	return func(r *SQLRunner) {
		r.timeout = d
	}
}

// WithIsolation sets the isolation level for every transaction.
func WithIsolation(level sql.IsolationLevel) SQLOption {
	return func(r *SQLRunner) {
		r.opts = &sql.TxOptions{Isolation: level}
	}
}

func NewSQLRunner(db *sql.DB, opts ...SQLOption) *SQLRunner {
	r := &SQLRunner{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunInTx begins a transaction, exposes it to fn through the context and
// commits when fn returns nil. A nested call joins the outer transaction.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

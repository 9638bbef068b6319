package tx

import (
	"context"
	"sync"

	dErrors "coinledger/pkg/domain-errors"
)

// Snapshotter is implemented by in-memory stores that take part in a
// MemoryRunner unit of work. Snapshot captures current state and returns a
// function that restores it.
type Snapshotter interface {
	Snapshot() (restore func())
}

type memoryTxKey struct{}

// MemoryRunner serializes units of work behind one lock and restores every
// registered store if fn fails, giving in-memory wiring the same
// all-or-nothing behavior as SQLRunner.
type MemoryRunner struct {
	mu     sync.Mutex
	stores []Snapshotter
}

func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{stores: stores}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.stores))
	for _, s := range r.stores {
		restores = append(restores, s.Snapshot())
	}

	if err := fn(context.WithValue(ctx, memoryTxKey{}, struct{}{})); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}

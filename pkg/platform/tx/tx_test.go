package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "coinledger/pkg/domain-errors"
)

func TestSQLRunner(t *testing.T) {
	t.Run("commits when fn succeeds and exposes tx in context", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE agents").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewSQLRunner(db).RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := From(ctx)
			require.True(t, ok)
			_, err := QuerierFrom(ctx, db).ExecContext(ctx, "UPDATE agents SET coin_balance = 1")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewSQLRunner(db).RunInTx(context.Background(), func(ctx context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		runner := NewSQLRunner(db)
		err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
			outer, _ := From(ctx)
			return runner.RunInTx(ctx, func(inner context.Context) error {
				got, _ := From(inner)
				assert.Same(t, outer, got)
				return nil
			})
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = NewSQLRunner(db).RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

type counterStore struct {
	mu    sync.Mutex
	value int
}

func (s *counterStore) Snapshot() func() {
	s.mu.Lock()
	saved := s.value
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.value = saved
		s.mu.Unlock()
	}
}

func (s *counterStore) add(n int) {
	s.mu.Lock()
	s.value += n
	s.mu.Unlock()
}

func TestMemoryRunner(t *testing.T) {
	t.Run("restores every store when fn fails", func(t *testing.T) {
		a, b := &counterStore{value: 10}, &counterStore{value: 5}
		runner := NewMemoryRunner(a, b)

		err := runner.RunInTx(context.Background(), func(context.Context) error {
			a.add(-3)
			b.add(3)
			return errors.New("fault after both writes")
		})
		require.Error(t, err)
		assert.Equal(t, 10, a.value)
		assert.Equal(t, 5, b.value)
	})

	t.Run("keeps writes when fn succeeds", func(t *testing.T) {
		a := &counterStore{value: 1}
		runner := NewMemoryRunner(a)

		require.NoError(t, runner.RunInTx(context.Background(), func(ctx context.Context) error {
			a.add(1)
			return runner.RunInTx(ctx, func(context.Context) error {
				a.add(1)
				return nil
			})
		}))
		assert.Equal(t, 3, a.value)
	})
}

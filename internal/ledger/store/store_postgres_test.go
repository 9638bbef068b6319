package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock, s.store, s.ctx = db, mock, NewPostgres(db), context.Background()
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresStoreSuite) TestIncrementUsesConditionalUpdate() {
	ref := uuid.New()
	s.mock.ExpectQuery(`UPDATE agents SET coin_balance = coin_balance \+ \$2, updated_at = now\(\) WHERE id = \$1 AND coin_balance \+ \$2 >= 0 RETURNING coin_balance`).
		WithArgs(ref, int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}).AddRow(int64(1500)))

	change, err := s.store.Increment(s.ctx, ref, models.FieldAgentCoins, 500)
	s.Require().NoError(err)
	s.Equal(models.BalanceChange{Old: 1000, New: 1500}, change)
}

func (s *PostgresStoreSuite) TestIncrementDistinguishesInsufficientFromMissing() {
	s.Run("row exists but floor would break", func() {
		s.SetupTest()
		ref := uuid.New()
		s.mock.ExpectQuery(`UPDATE agents`).WithArgs(ref, int64(-1000)).
			WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}))
		s.mock.ExpectQuery(`SELECT coin_balance FROM agents`).WithArgs(ref).
			WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}).AddRow(int64(500)))

		_, err := s.store.Increment(s.ctx, ref, models.FieldAgentCoins, -1000)
		s.ErrorIs(err, sentinel.ErrInsufficient)
	})

	s.Run("row missing", func() {
		s.SetupTest()
		ref := uuid.New()
		s.mock.ExpectQuery(`UPDATE agents`).WithArgs(ref, int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}))
		s.mock.ExpectQuery(`SELECT coin_balance FROM agents`).WithArgs(ref).
			WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}))

		_, err := s.store.Increment(s.ctx, ref, models.FieldAgentCoins, 5)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestIncrementRejectsStockedDecrement() {
	_, err := s.store.Increment(s.ctx, uuid.New(), models.FieldAgentStocked, -5)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestIncrementWallet() {
	userID := id.UserID(uuid.New())
	delta := decimal.RequireFromString("-25.75")
	s.mock.ExpectQuery(`UPDATE user_accounts SET wallet_balance`).
		WithArgs(uuid.UUID(userID), delta).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow("-5.75"))

	change, err := s.store.IncrementWallet(s.ctx, userID, delta)
	s.Require().NoError(err)
	s.True(change.Old.Equal(decimal.NewFromInt(20)))
	s.True(change.New.Equal(decimal.RequireFromString("-5.75")))
}

func (s *PostgresStoreSuite) TestLockAgentsOrdersLocks() {
	a, b := uuid.New(), uuid.New()
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT id FROM agents WHERE id = ANY\(\$1::uuid\[\]\) ORDER BY id FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))
	s.mock.ExpectRollback()

	tx, err := s.db.Begin()
	s.Require().NoError(err)
	defer tx.Rollback()

	found, err := s.store.LockAgents(txcontext.WithTx(s.ctx, tx), id.AgentID(b), id.AgentID(a))
	s.Require().NoError(err)
	s.Equal([]id.AgentID{id.AgentID(a), id.AgentID(b)}, found)
}

// A fault on the credit side of a transfer must leave the debit uncommitted.
func (s *PostgresStoreSuite) TestFaultMidTransferRollsBack() {
	from, to := uuid.New(), uuid.New()
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`UPDATE agents`).WithArgs(from, int64(-300)).
		WillReturnRows(sqlmock.NewRows([]string{"coin_balance"}).AddRow(int64(700)))
	s.mock.ExpectQuery(`UPDATE agents`).WithArgs(to, int64(300)).
		WillReturnError(errors.New("connection reset by peer"))
	s.mock.ExpectRollback()

	runner := txcontext.NewSQLRunner(s.db)
	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.Increment(ctx, from, models.FieldAgentCoins, -300); err != nil {
			return err
		}
		_, err := s.store.Increment(ctx, to, models.FieldAgentCoins, 300)
		return err
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "connection reset")
}

func (s *PostgresStoreSuite) TestGetAgentNotFound() {
	agentID := id.AgentID(uuid.New())
	s.mock.ExpectQuery(`FROM agents WHERE id = \$1`).WithArgs(uuid.UUID(agentID)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.store.GetAgent(s.ctx, agentID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

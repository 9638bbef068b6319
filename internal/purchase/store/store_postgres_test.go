package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

var purchaseCols = []string{"id", "agent_id", "quantity", "status", "tx_hash", "approved_by", "approved_at",
	"rejection_reason", "notes", "created_at", "updated_at"}

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock, s.store, s.ctx = db, mock, NewPostgres(db), context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresStoreSuite) TestTransitionIsConditional() {
	purchaseID, agentID, adminID := uuid.New(), uuid.New(), uuid.New()
	s.mock.ExpectQuery(`UPDATE coin_purchase_requests .* WHERE id = \$1 AND status = ANY\(\$2::text\[\]\) RETURNING`).
		WithArgs(purchaseID, sqlmock.AnyArg(), "confirmed", adminID, s.now, "paid via USDT", "", s.now).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(
			purchaseID.String(), agentID.String(), int64(250), "confirmed", "0xabc", adminID.String(), s.now, "", "paid via USDT", s.now, s.now))

	p, err := s.store.Transition(s.ctx, id.PurchaseID(purchaseID), models.OpenStatuses, models.Transition{
		To:         models.StatusConfirmed,
		ApprovedBy: id.UserID(adminID),
		At:         s.now,
		Notes:      "paid via USDT",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, p.Status)
	s.Require().NotNil(p.ApprovedBy)
	s.Equal(id.UserID(adminID), *p.ApprovedBy)
	s.Require().NotNil(p.ApprovedAt)
}

func (s *PostgresStoreSuite) TestTransitionLostRaceIsConflict() {
	purchaseID, agentID := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`UPDATE coin_purchase_requests`).WillReturnRows(sqlmock.NewRows(purchaseCols))
	s.mock.ExpectQuery(`FROM coin_purchase_requests WHERE id = \$1`).WithArgs(purchaseID).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(
			purchaseID.String(), agentID.String(), int64(250), "confirmed", "0xabc", nil, nil, "", "", s.now, s.now))

	_, err := s.store.Transition(s.ctx, id.PurchaseID(purchaseID), models.OpenStatuses, models.Transition{To: models.StatusConfirmed, At: s.now})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestTransitionMissingPurchase() {
	purchaseID := uuid.New()
	s.mock.ExpectQuery(`UPDATE coin_purchase_requests`).WillReturnRows(sqlmock.NewRows(purchaseCols))
	s.mock.ExpectQuery(`FROM coin_purchase_requests WHERE id = \$1`).WithArgs(purchaseID).
		WillReturnRows(sqlmock.NewRows(purchaseCols))

	_, err := s.store.Transition(s.ctx, id.PurchaseID(purchaseID), models.OpenStatuses, models.Transition{To: models.StatusRejected, At: s.now})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGetForUpdateLocksRow() {
	purchaseID, agentID := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`FROM coin_purchase_requests WHERE id = \$1 FOR UPDATE`).WithArgs(purchaseID).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(
			purchaseID.String(), agentID.String(), int64(10), "verifying", "0x1", nil, nil, "", "", s.now, s.now))

	p, err := s.store.GetForUpdate(s.ctx, id.PurchaseID(purchaseID))
	s.Require().NoError(err)
	s.Equal(models.StatusVerifying, p.Status)
	s.Nil(p.ApprovedBy)
	s.Nil(p.ApprovedAt)
}

func (s *PostgresStoreSuite) TestListReturnsPageAndTotal() {
	agentID := uuid.New()
	agent := id.AgentID(agentID)
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_purchase_requests`).
		WithArgs(sqlmock.AnyArg(), agentID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	s.mock.ExpectQuery(`ORDER BY created_at DESC, id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs(sqlmock.AnyArg(), agentID, 2, 0).
		WillReturnRows(sqlmock.NewRows(purchaseCols).
			AddRow(uuid.NewString(), agentID.String(), int64(5), "pending", "", nil, nil, "", "", s.now, s.now).
			AddRow(uuid.NewString(), agentID.String(), int64(7), "verifying", "0x2", nil, nil, "", "", s.now.Add(-time.Hour), s.now))

	purchases, total, err := s.store.List(s.ctx, models.ListFilter{Statuses: models.OpenStatuses, AgentID: &agent, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(purchases, 2)
}

func (s *PostgresStoreSuite) TestStats() {
	s.mock.ExpectQuery(`FILTER \(WHERE status = 'confirmed'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"issued", "confirmed", "pending"}).AddRow(int64(1200), int64(4), int64(2)))

	st, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Stats{TotalCoinsIssued: 1200, ConfirmedCount: 4, PendingCount: 2}, st)
}

func (s *PostgresStoreSuite) TestDeleteUnconfirmedRefusesConfirmed() {
	purchaseID, agentID := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`DELETE FROM coin_purchase_requests WHERE id = \$1 AND status <> 'confirmed'`).
		WithArgs(purchaseID).
		WillReturnRows(sqlmock.NewRows(purchaseCols))
	s.mock.ExpectQuery(`FROM coin_purchase_requests WHERE id = \$1`).WithArgs(purchaseID).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(
			purchaseID.String(), agentID.String(), int64(10), "confirmed", "0x1", nil, nil, "", "", s.now, s.now))

	_, err := s.store.DeleteUnconfirmed(s.ctx, id.PurchaseID(purchaseID))
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

var bulkCols = []string{"id", "sponsor_id", "total_amount", "recipient_count", "distribution_type", "status",
	"actual_recipient_count", "processed_at", "created_at"}

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

func (s *PostgresStoreSuite) TestGetForUpdateLocksRow() {
	bulkID, sponsor := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`FROM bulk_donations WHERE id = \$1 FOR UPDATE`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows(bulkCols).AddRow(
			bulkID.String(), sponsor.String(), int64(1000), 3, "equal", "pending", 0, nil, s.now))

	b, err := s.store.GetForUpdate(s.ctx, id.BulkDonationID(bulkID))
	s.Require().NoError(err)
	s.Equal(models.StatusPending, b.Status)
	s.Equal(id.UserID(sponsor), b.SponsorID)
	s.Nil(b.ProcessedAt)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	bulkID := uuid.New()
	s.mock.ExpectQuery(`FROM bulk_donations WHERE id = \$1`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows(bulkCols))

	_, err := s.store.Get(s.ctx, id.BulkDonationID(bulkID))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCreateDonationsSingleStatement() {
	bulkID, sponsor := uuid.New(), id.UserID(uuid.New())
	donations := []models.Donation{
		{ID: id.DonationID(uuid.New()), DonorID: sponsor, RecipientID: id.UserID(uuid.New()), Amount: 334, CreatedAt: s.now},
		{ID: id.DonationID(uuid.New()), DonorID: sponsor, RecipientID: id.UserID(uuid.New()), Amount: 333, CreatedAt: s.now},
	}
	s.mock.ExpectExec(`INSERT INTO donations .* FROM unnest\(\$1::uuid\[\], \$2::uuid\[\], \$3::uuid\[\], \$4::bigint\[\]\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), bulkID, s.now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	s.NoError(s.store.CreateDonations(s.ctx, id.BulkDonationID(bulkID), donations))
}

func (s *PostgresStoreSuite) TestCreateDonationsEmptyIsNoop() {
	s.NoError(s.store.CreateDonations(s.ctx, id.BulkDonationID(uuid.New()), nil))
}

func (s *PostgresStoreSuite) TestMarkProcessedIsConditional() {
	bulkID, sponsor := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`UPDATE bulk_donations .* WHERE id = \$1 AND status = 'pending'`).
		WithArgs(bulkID, 3, s.now).
		WillReturnRows(sqlmock.NewRows(bulkCols).AddRow(
			bulkID.String(), sponsor.String(), int64(1000), 3, "equal", "processed", 3, s.now, s.now))

	b, err := s.store.MarkProcessed(s.ctx, id.BulkDonationID(bulkID), 3, s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessed, b.Status)
	s.Require().NotNil(b.ProcessedAt)
}

func (s *PostgresStoreSuite) TestMarkProcessedTwiceIsConflict() {
	bulkID, sponsor := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`UPDATE bulk_donations`).WillReturnRows(sqlmock.NewRows(bulkCols))
	s.mock.ExpectQuery(`FROM bulk_donations WHERE id = \$1`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows(bulkCols).AddRow(
			bulkID.String(), sponsor.String(), int64(1000), 3, "equal", "processed", 3, s.now, s.now))

	_, err := s.store.MarkProcessed(s.ctx, id.BulkDonationID(bulkID), 3, s.now)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestListDonations() {
	bulkID := uuid.New()
	s.mock.ExpectQuery(`FROM donations\s+WHERE bulk_donation_id = \$1`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "donor_id", "recipient_id", "amount", "created_at"}).
			AddRow(uuid.NewString(), uuid.NewString(), uuid.NewString(), int64(334), s.now).
			AddRow(uuid.NewString(), uuid.NewString(), uuid.NewString(), int64(333), s.now))

	donations, err := s.store.ListDonations(s.ctx, id.BulkDonationID(bulkID))
	s.Require().NoError(err)
	s.Len(donations, 2)
	s.Require().NotNil(donations[0].BulkDonationID)
	s.Equal(id.BulkDonationID(bulkID), *donations[0].BulkDonationID)
}

func (s *PostgresStoreSuite) TestDeletePendingRefusesProcessed() {
	bulkID, sponsor := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`DELETE FROM bulk_donations\s+WHERE id = \$1 AND status = 'pending'`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows(bulkCols))
	s.mock.ExpectQuery(`FROM bulk_donations WHERE id = \$1`).WithArgs(bulkID).
		WillReturnRows(sqlmock.NewRows(bulkCols).AddRow(
			bulkID.String(), sponsor.String(), int64(1000), 3, "equal", "processed", 3, s.now, s.now))

	_, err := s.store.DeletePending(s.ctx, id.BulkDonationID(bulkID))
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

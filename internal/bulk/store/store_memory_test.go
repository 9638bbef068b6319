package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) pending() *models.BulkDonation {
	b := &models.BulkDonation{
		ID:               id.BulkDonationID(uuid.New()),
		SponsorID:        id.UserID(uuid.New()),
		TotalAmount:      1000,
		RecipientCount:   3,
		DistributionType: models.DistributionEqual,
		Status:           models.StatusPending,
		CreatedAt:        s.now,
	}
	s.Require().NoError(s.store.Create(s.ctx, b))
	return b
}

func (s *InMemoryStoreSuite) TestCreateDuplicate() {
	b := s.pending()
	s.ErrorIs(s.store.Create(s.ctx, b), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestMarkProcessedOnce() {
	b := s.pending()

	processed, err := s.store.MarkProcessed(s.ctx, b.ID, 3, s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessed, processed.Status)
	s.Equal(3, processed.ActualRecipientCount)
	s.Require().NotNil(processed.ProcessedAt)

	_, err = s.store.MarkProcessed(s.ctx, b.ID, 3, s.now)
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.MarkProcessed(s.ctx, id.BulkDonationID(uuid.New()), 3, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDonationsAreLinked() {
	b := s.pending()
	other := s.pending()

	s.Require().NoError(s.store.CreateDonations(s.ctx, b.ID, []models.Donation{
		{ID: id.DonationID(uuid.New()), DonorID: b.SponsorID, RecipientID: id.UserID(uuid.New()), Amount: 500},
		{ID: id.DonationID(uuid.New()), DonorID: b.SponsorID, RecipientID: id.UserID(uuid.New()), Amount: 500},
	}))
	s.Require().NoError(s.store.CreateDonations(s.ctx, other.ID, []models.Donation{
		{ID: id.DonationID(uuid.New()), DonorID: other.SponsorID, RecipientID: id.UserID(uuid.New()), Amount: 1000},
	}))

	donations, err := s.store.ListDonations(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Len(donations, 2)
	for _, d := range donations {
		s.Require().NotNil(d.BulkDonationID)
		s.Equal(b.ID, *d.BulkDonationID)
	}

	s.ErrorIs(s.store.CreateDonations(s.ctx, id.BulkDonationID(uuid.New()), donations), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSnapshotRestoresDonationsAndStatus() {
	b := s.pending()
	restore := s.store.Snapshot()

	s.Require().NoError(s.store.CreateDonations(s.ctx, b.ID, []models.Donation{
		{ID: id.DonationID(uuid.New()), DonorID: b.SponsorID, RecipientID: id.UserID(uuid.New()), Amount: 1000},
	}))
	_, err := s.store.MarkProcessed(s.ctx, b.ID, 1, s.now)
	s.Require().NoError(err)

	restore()

	got, err := s.store.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	donations, err := s.store.ListDonations(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Empty(donations)
}

func (s *InMemoryStoreSuite) TestDeletePending() {
	b := s.pending()
	deleted, err := s.store.DeletePending(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(b.ID, deleted.ID)

	_, err = s.store.Get(s.ctx, b.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	processed := s.pending()
	_, err = s.store.MarkProcessed(s.ctx, processed.ID, 3, s.now)
	s.Require().NoError(err)
	_, err = s.store.DeletePending(s.ctx, processed.ID)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

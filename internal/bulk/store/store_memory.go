package store

import (
	"context"
	"sync"
	"time"

	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

// InMemoryStore keeps bulk donations and their donations in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	bulks     map[id.BulkDonationID]models.BulkDonation
	donations []models.Donation
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{bulks: make(map[id.BulkDonationID]models.BulkDonation)}
}

func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	bulks := make(map[id.BulkDonationID]models.BulkDonation, len(s.bulks))
	for k, v := range s.bulks {
		bulks[k] = v
	}
	donations := append([]models.Donation(nil), s.donations...)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bulks = bulks
		s.donations = donations
	}
}

func (s *InMemoryStore) Create(_ context.Context, b *models.BulkDonation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bulks[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.bulks[b.ID] = *b
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bulks[bulkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *InMemoryStore) GetForUpdate(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	return s.Get(ctx, bulkID)
}

// CreateDonations appends donations linked to bulkID.
func (s *InMemoryStore) CreateDonations(_ context.Context, bulkID id.BulkDonationID, donations []models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bulks[bulkID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, d := range donations {
		link := bulkID
		d.BulkDonationID = &link
		s.donations = append(s.donations, d)
	}
	return nil
}

func (s *InMemoryStore) ListDonations(_ context.Context, bulkID id.BulkDonationID) ([]models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Donation{}
	for _, d := range s.donations {
		if d.BulkDonationID != nil && *d.BulkDonationID == bulkID {
			out = append(out, d)
		}
	}
	return out, nil
}

// MarkProcessed flips a pending bulk donation to processed. A bulk donation
// that is no longer pending yields sentinel.ErrConflict.
func (s *InMemoryStore) MarkProcessed(_ context.Context, bulkID id.BulkDonationID, actual int, at time.Time) (*models.BulkDonation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bulks[bulkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if b.Status != models.StatusPending {
		return nil, sentinel.ErrConflict
	}
	b.Status = models.StatusProcessed
	b.ActualRecipientCount = actual
	b.ProcessedAt = &at
	s.bulks[bulkID] = b
	return &b, nil
}

// DeletePending removes a bulk donation that has not been split. Processed
// ones yield sentinel.ErrInvalidState.
func (s *InMemoryStore) DeletePending(_ context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bulks[bulkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if b.Status != models.StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	delete(s.bulks, bulkID)
	return &b, nil
}

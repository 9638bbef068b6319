package store

import (
	"context"
	"slices"
	"sync"

	"coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

// InMemoryStore keeps purchase requests in memory for tests and local runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	purchases map[id.PurchaseID]models.Purchase
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{purchases: make(map[id.PurchaseID]models.Purchase)}
}

func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.PurchaseID]models.Purchase, len(s.purchases))
	for k, v := range s.purchases {
		saved[k] = v
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.purchases = saved
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.purchases[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.purchases[p.ID] = *p
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// GetForUpdate is Get; the memory runner already serializes units of work.
func (s *InMemoryStore) GetForUpdate(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	return s.Get(ctx, purchaseID)
}

// Transition moves a purchase to t.To only if its current status is one of
// from. It returns sentinel.ErrConflict when the status no longer matches.
func (s *InMemoryStore) Transition(_ context.Context, purchaseID id.PurchaseID, from []models.Status, t models.Transition) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !slices.Contains(from, p.Status) {
		return nil, sentinel.ErrConflict
	}

	approver := t.ApprovedBy
	p.Status = t.To
	p.ApprovedBy = &approver
	p.UpdatedAt = t.At
	if t.To == models.StatusConfirmed {
		at := t.At
		p.ApprovedAt = &at
		p.Notes = t.Notes
	}
	if t.To == models.StatusRejected {
		p.RejectionReason = t.RejectionReason
	}
	s.purchases[purchaseID] = p
	return &p, nil
}

// List returns purchases matching filter, newest first, and the total match count.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]models.Purchase, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Purchase
	for _, p := range s.purchases {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, p.Status) {
			continue
		}
		if filter.AgentID != nil && p.AgentID != *filter.AgentID {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b models.Purchase) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []models.Purchase{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st models.Stats
	for _, p := range s.purchases {
		switch p.Status {
		case models.StatusConfirmed:
			st.ConfirmedCount++
			st.TotalCoinsIssued += p.Quantity
		case models.StatusPending, models.StatusVerifying:
			st.PendingCount++
		}
	}
	return st, nil
}

// DeleteUnconfirmed removes a purchase that never credited coins. A confirmed
// purchase yields sentinel.ErrInvalidState.
func (s *InMemoryStore) DeleteUnconfirmed(_ context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.Status == models.StatusConfirmed {
		return nil, sentinel.ErrInvalidState
	}
	delete(s.purchases, purchaseID)
	return &p, nil
}

func compareIDs(a, b id.PurchaseID) int {
	return slices.Compare(a[:], b[:])
}

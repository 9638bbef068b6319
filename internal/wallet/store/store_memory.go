package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"coinledger/internal/wallet/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

// InMemoryStore keeps payment wallets in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	wallets map[id.CryptoWalletID]models.CryptoWallet
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{wallets: make(map[id.CryptoWalletID]models.CryptoWallet)}
}

func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.CryptoWalletID]models.CryptoWallet, len(s.wallets))
	for k, v := range s.wallets {
		saved[k] = v
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.wallets = saved
	}
}

// Create inserts w. A reused id or address yields sentinel.ErrConflict.
func (s *InMemoryStore) Create(_ context.Context, w *models.CryptoWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.wallets {
		if existing.Address == w.Address {
			return sentinel.ErrConflict
		}
	}
	s.wallets[w.ID] = *w
	return nil
}

// ListActive returns active wallets ordered by currency.
func (s *InMemoryStore) ListActive(_ context.Context) ([]models.CryptoWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CryptoWallet{}
	for _, w := range s.wallets {
		if w.IsActive {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b models.CryptoWallet) int {
		if c := strings.Compare(string(a.Currency), string(b.Currency)); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Deactivate clears is_active. Deactivating an inactive wallet is a no-op
// that still returns the wallet.
func (s *InMemoryStore) Deactivate(_ context.Context, walletID id.CryptoWalletID, at time.Time) (*models.CryptoWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if w.IsActive {
		w.IsActive = false
		w.UpdatedAt = at
		s.wallets[walletID] = w
	}
	return &w, nil
}

package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

// InMemoryStore keeps agents and user accounts in memory. Each increment is
// atomic under the store lock; cross-call atomicity comes from tx.MemoryRunner
// via Snapshot.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[id.AgentID]models.Agent
	users  map[id.UserID]models.UserAccount
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		agents: make(map[id.AgentID]models.Agent),
		users:  make(map[id.UserID]models.UserAccount),
	}
}

// Snapshot captures the current state and returns a function that restores it.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	agents := make(map[id.AgentID]models.Agent, len(s.agents))
	for k, v := range s.agents {
		agents[k] = v
	}
	users := make(map[id.UserID]models.UserAccount, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.agents = agents
		s.users = users
	}
}

func (s *InMemoryStore) CreateAgent(_ context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, a := range s.agents {
		if a.Code == agent.Code {
			return sentinel.ErrConflict
		}
	}
	s.agents[agent.ID] = *agent
	return nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, user *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) GetAgent(_ context.Context, agentID id.AgentID) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[agentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) GetUser(_ context.Context, userID id.UserID) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

// Increment adds delta to field and returns the old and new values. It fails
// with sentinel.ErrInsufficient, writing nothing, if the result would be negative.
func (s *InMemoryStore) Increment(_ context.Context, ref uuid.UUID, field models.Field, delta int64) (models.BalanceChange, error) {
	if field.Monotonic() && delta < 0 {
		return models.BalanceChange{}, fmt.Errorf("decrement %s: %w", field, sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if field.OnAgent() {
		a, ok := s.agents[id.AgentID(ref)]
		if !ok {
			return models.BalanceChange{}, sentinel.ErrNotFound
		}
		col := &a.CoinBalance
		if field == models.FieldAgentStocked {
			col = &a.TotalCoinsStocked
		}
		change, err := apply(col, delta)
		if err != nil {
			return change, err
		}
		a.UpdatedAt = now
		s.agents[a.ID] = a
		return change, nil
	}

	u, ok := s.users[id.UserID(ref)]
	if !ok {
		return models.BalanceChange{}, sentinel.ErrNotFound
	}
	change, err := apply(&u.CharityCoinsBalance, delta)
	if err != nil {
		return change, err
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return change, nil
}

func apply(col *int64, delta int64) (models.BalanceChange, error) {
	old := *col
	if old+delta < 0 {
		return models.BalanceChange{}, sentinel.ErrInsufficient
	}
	*col = old + delta
	return models.BalanceChange{Old: old, New: *col}, nil
}

// IncrementWallet adds a signed delta to the wallet. The wallet has no floor.
func (s *InMemoryStore) IncrementWallet(_ context.Context, userID id.UserID, delta decimal.Decimal) (models.WalletChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return models.WalletChange{}, sentinel.ErrNotFound
	}
	change := models.WalletChange{Old: u.WalletBalance, New: u.WalletBalance.Add(delta)}
	u.WalletBalance = change.New
	u.UpdatedAt = time.Now()
	s.users[userID] = u
	return change, nil
}

func (s *InMemoryStore) Read(_ context.Context, ref uuid.UUID, field models.Field) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if field.OnAgent() {
		a, ok := s.agents[id.AgentID(ref)]
		if !ok {
			return 0, sentinel.ErrNotFound
		}
		if field == models.FieldAgentStocked {
			return a.TotalCoinsStocked, nil
		}
		return a.CoinBalance, nil
	}
	u, ok := s.users[id.UserID(ref)]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return u.CharityCoinsBalance, nil
}

// LockAgents returns which of the ids exist, in ascending order. The runner
// lock already serializes writers in memory.
func (s *InMemoryStore) LockAgents(_ context.Context, ids ...id.AgentID) ([]id.AgentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]id.AgentID, 0, len(ids))
	for _, agentID := range ids {
		if _, ok := s.agents[agentID]; ok && !slices.Contains(found, agentID) {
			found = append(found, agentID)
		}
	}
	slices.SortFunc(found, compareAgentIDs)
	return found, nil
}

// ListEligibleUsers returns receiving, non-banned users with trust at least
// minTrust, ordered by trust desc, last activity desc, id asc.
func (s *InMemoryStore) ListEligibleUsers(_ context.Context, minTrust float64, limit int) ([]models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.UserAccount
	for _, u := range s.users {
		if u.IsReceiving && !u.IsBanned && u.TrustScore >= minTrust {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.UserAccount) int {
		if c := cmp.Compare(b.TrustScore, a.TrustScore); c != 0 {
			return c
		}
		if c := b.LastActiveAt.Compare(a.LastActiveAt); c != 0 {
			return c
		}
		return compareUUIDs(uuid.UUID(a.ID), uuid.UUID(b.ID))
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Totals sums coin balances across all agents and users.
func (s *InMemoryStore) Totals(_ context.Context) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t models.Totals
	for _, a := range s.agents {
		t.AgentCoins += a.CoinBalance
		t.AgentCount++
	}
	for _, u := range s.users {
		t.UserCoins += u.CharityCoinsBalance
	}
	return t, nil
}

func compareAgentIDs(a, b id.AgentID) int {
	return compareUUIDs(uuid.UUID(a), uuid.UUID(b))
}

// compareUUIDs orders by the canonical string form, which is what Postgres
// uses for uuid comparison.
func compareUUIDs(a, b uuid.UUID) int {
	return cmp.Compare(a.String(), b.String())
}

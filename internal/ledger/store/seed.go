package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
)

var seedNamespace = uuid.MustParse("6f1d3c2e-4b7a-4e43-9a55-0c8b6d2f1e90")

type seedTarget interface {
	CreateAgent(ctx context.Context, agent *models.Agent) error
	CreateUser(ctx context.Context, user *models.UserAccount) error
}

// SeedAgentID and SeedUserID derive stable ids so reseeding is idempotent.
func SeedAgentID(code string) id.AgentID {
	return id.AgentID(uuid.NewSHA1(seedNamespace, []byte("agent:"+code)))
}

func SeedUserID(name string) id.UserID {
	return id.UserID(uuid.NewSHA1(seedNamespace, []byte("user:"+name)))
}

// SeedDemo creates a small set of agents and eligible users for local runs.
// Rows that already exist are left untouched.
func SeedDemo(ctx context.Context, st seedTarget, now time.Time) error {
	agents := []models.Agent{
		{Code: "AGT-LAG-001", CoinBalance: 1000, TotalCoinsStocked: 1000},
		{Code: "AGT-ABJ-002", CoinBalance: 500, TotalCoinsStocked: 500},
		{Code: "AGT-PHC-003"},
	}
	for i := range agents {
		a := &agents[i]
		a.ID = SeedAgentID(a.Code)
		a.CreatedAt, a.UpdatedAt = now, now
		if err := st.CreateAgent(ctx, a); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("seed agent %s: %w", a.Code, err)
		}
	}

	users := []models.UserAccount{
		{DisplayName: "corporate-sponsor", WalletBalance: decimal.NewFromInt(250000), IsReceiving: false, TrustScore: 5},
		{DisplayName: "ada", IsReceiving: true, TrustScore: 4.8},
		{DisplayName: "bayo", IsReceiving: true, TrustScore: 4.2},
		{DisplayName: "chidi", IsReceiving: true, TrustScore: 3.9},
		{DisplayName: "dami", IsReceiving: true, TrustScore: 3.5},
		{DisplayName: "efe", IsReceiving: true, TrustScore: 3.0},
		{DisplayName: "funmi", IsReceiving: true, TrustScore: 2.4},
		{DisplayName: "gbenga", IsReceiving: true, TrustScore: 4.9, IsBanned: true},
	}
	for i := range users {
		u := &users[i]
		u.ID = SeedUserID(u.DisplayName)
		u.LastActiveAt = now.Add(-time.Duration(i) * time.Hour)
		u.CreatedAt, u.UpdatedAt = now, now
		if err := st.CreateUser(ctx, u); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("seed user %s: %w", u.DisplayName, err)
		}
	}
	return nil
}

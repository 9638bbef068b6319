package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"coinledger/internal/ledger/models"
	"coinledger/internal/platform/postgres"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
)

// PostgresStore persists balances in PostgreSQL. Every increment is a single
// conditional UPDATE ... RETURNING, so concurrent writers never lose updates
// and a floored column is never written below zero.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Queries are fixed per field; column names never come from input.
var incrementQueries = map[models.Field]string{
	models.FieldAgentCoins: `
		UPDATE agents SET coin_balance = coin_balance + $2, updated_at = now()
		WHERE id = $1 AND coin_balance + $2 >= 0
		RETURNING coin_balance`,
	models.FieldAgentStocked: `
		UPDATE agents SET total_coins_stocked = total_coins_stocked + $2, updated_at = now()
		WHERE id = $1 AND total_coins_stocked + $2 >= 0
		RETURNING total_coins_stocked`,
	models.FieldUserCoins: `
		UPDATE user_accounts SET charity_coins_balance = charity_coins_balance + $2, updated_at = now()
		WHERE id = $1 AND charity_coins_balance + $2 >= 0
		RETURNING charity_coins_balance`,
}

var readQueries = map[models.Field]string{
	models.FieldAgentCoins:   `SELECT coin_balance FROM agents WHERE id = $1`,
	models.FieldAgentStocked: `SELECT total_coins_stocked FROM agents WHERE id = $1`,
	models.FieldUserCoins:    `SELECT charity_coins_balance FROM user_accounts WHERE id = $1`,
}

func (s *PostgresStore) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

func (s *PostgresStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO agents (id, agent_code, coin_balance, total_coins_stocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(agent.ID), agent.Code, agent.CoinBalance, agent.TotalCoinsStocked, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.UserAccount) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO user_accounts (id, display_name, charity_coins_balance, wallet_balance,
			is_receiving, trust_score, is_banned, last_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(user.ID), user.DisplayName, user.CharityCoinsBalance, user.WalletBalance,
		user.IsReceiving, user.TrustScore, user.IsBanned, user.LastActiveAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, agentID id.AgentID) (*models.Agent, error) {
	var a models.Agent
	var rawID uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, agent_code, coin_balance, total_coins_stocked, created_at, updated_at
		FROM agents WHERE id = $1
	`, uuid.UUID(agentID)).Scan(&rawID, &a.Code, &a.CoinBalance, &a.TotalCoinsStocked, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.ID = id.AgentID(rawID)
	return &a, nil
}

const userColumns = `id, display_name, charity_coins_balance, wallet_balance,
	is_receiving, trust_score, is_banned, last_active_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.UserAccount, error) {
	var u models.UserAccount
	var rawID uuid.UUID
	err := row.Scan(&rawID, &u.DisplayName, &u.CharityCoinsBalance, &u.WalletBalance,
		&u.IsReceiving, &u.TrustScore, &u.IsBanned, &u.LastActiveAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id.UserID(rawID)
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID id.UserID) (*models.UserAccount, error) {
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user_accounts WHERE id = $1`, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user account: %w", err)
	}
	return u, nil
}

// Increment atomically adds delta to field. When no row is updated it tells
// a missing entity (sentinel.ErrNotFound) apart from a floor breach
// (sentinel.ErrInsufficient).
func (s *PostgresStore) Increment(ctx context.Context, ref uuid.UUID, field models.Field, delta int64) (models.BalanceChange, error) {
	query, ok := incrementQueries[field]
	if !ok {
		return models.BalanceChange{}, fmt.Errorf("increment %s: unsupported field", field)
	}
	if field.Monotonic() && delta < 0 {
		return models.BalanceChange{}, fmt.Errorf("decrement %s: %w", field, sentinel.ErrInvalidState)
	}

	var newValue int64
	err := s.q(ctx).QueryRowContext(ctx, query, ref, delta).Scan(&newValue)
	if err == nil {
		return models.BalanceChange{Old: newValue - delta, New: newValue}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if postgres.IsCheckViolation(err) {
			return models.BalanceChange{}, sentinel.ErrInsufficient
		}
		return models.BalanceChange{}, fmt.Errorf("increment %s: %w", field, err)
	}

	if _, err := s.Read(ctx, ref, field); err != nil {
		return models.BalanceChange{}, err
	}
	return models.BalanceChange{}, sentinel.ErrInsufficient
}

// IncrementWallet adds a signed delta to the wallet. The wallet has no floor.
func (s *PostgresStore) IncrementWallet(ctx context.Context, userID id.UserID, delta decimal.Decimal) (models.WalletChange, error) {
	var newValue decimal.Decimal
	err := s.q(ctx).QueryRowContext(ctx, `
		UPDATE user_accounts SET wallet_balance = wallet_balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING wallet_balance
	`, uuid.UUID(userID), delta).Scan(&newValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WalletChange{}, sentinel.ErrNotFound
		}
		return models.WalletChange{}, fmt.Errorf("increment wallet: %w", err)
	}
	return models.WalletChange{Old: newValue.Sub(delta), New: newValue}, nil
}

func (s *PostgresStore) Read(ctx context.Context, ref uuid.UUID, field models.Field) (int64, error) {
	query, ok := readQueries[field]
	if !ok {
		return 0, fmt.Errorf("read %s: unsupported field", field)
	}
	var v int64
	if err := s.q(ctx).QueryRowContext(ctx, query, ref).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("read %s: %w", field, err)
	}
	return v, nil
}

// LockAgents takes row locks on the given agents in ascending id order and
// returns the ids that exist. Must run inside a transaction.
func (s *PostgresStore) LockAgents(ctx context.Context, ids ...id.AgentID) ([]id.AgentID, error) {
	raw := make([]string, 0, len(ids))
	for _, agentID := range ids {
		raw = append(raw, agentID.String())
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id FROM agents
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("lock agents: %w", err)
	}
	defer rows.Close()

	var found []id.AgentID
	for rows.Next() {
		var rawID uuid.UUID
		if err := rows.Scan(&rawID); err != nil {
			return nil, fmt.Errorf("scan locked agent: %w", err)
		}
		found = append(found, id.AgentID(rawID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked agents: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) ListEligibleUsers(ctx context.Context, minTrust float64, limit int) ([]models.UserAccount, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM user_accounts
		WHERE is_receiving AND NOT is_banned AND trust_score >= $1
		ORDER BY trust_score DESC, last_active_at DESC, id ASC
		LIMIT $2
	`, minTrust, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	defer rows.Close()

	var users []models.UserAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(coin_balance), 0) FROM agents),
			(SELECT COALESCE(SUM(charity_coins_balance), 0) FROM user_accounts),
			(SELECT COUNT(*) FROM agents)
	`).Scan(&t.AgentCoins, &t.UserCoins, &t.AgentCount)
	if err != nil {
		return models.Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}

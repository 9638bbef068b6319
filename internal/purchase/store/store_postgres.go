package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coinledger/internal/purchase/models"
	"coinledger/internal/platform/postgres"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
)

// PostgresStore persists purchase requests. Status changes are conditional
// updates, so a request moves to a terminal state at most once.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const purchaseColumns = `id, agent_id, quantity, status, tx_hash, approved_by, approved_at,
	rejection_reason, notes, created_at, updated_at`

func (s *PostgresStore) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var (
		p          models.Purchase
		rawID      uuid.UUID
		rawAgent   uuid.UUID
		approvedBy uuid.NullUUID
		approvedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawAgent, &p.Quantity, &p.Status, &p.TxHash, &approvedBy, &approvedAt,
		&p.RejectionReason, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.PurchaseID(rawID)
	p.AgentID = id.AgentID(rawAgent)
	if approvedBy.Valid {
		approver := id.UserID(approvedBy.UUID)
		p.ApprovedBy = &approver
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		p.ApprovedAt = &at
	}
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Purchase) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO coin_purchase_requests (id, agent_id, quantity, status, tx_hash, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(p.ID), uuid.UUID(p.AgentID), p.Quantity, string(p.Status), p.TxHash, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("agent %s: %w", p.AgentID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	return s.get(ctx, `SELECT `+purchaseColumns+` FROM coin_purchase_requests WHERE id = $1`, purchaseID)
}

// GetForUpdate reads and row-locks the purchase. Must run inside a transaction.
func (s *PostgresStore) GetForUpdate(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	return s.get(ctx, `SELECT `+purchaseColumns+` FROM coin_purchase_requests WHERE id = $1 FOR UPDATE`, purchaseID)
}

func (s *PostgresStore) get(ctx context.Context, query string, purchaseID id.PurchaseID) (*models.Purchase, error) {
	p, err := scanPurchase(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(purchaseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}

// Transition moves a purchase to t.To only if its current status is one of
// from. Zero affected rows means another writer got there first.
func (s *PostgresStore) Transition(ctx context.Context, purchaseID id.PurchaseID, from []models.Status, t models.Transition) (*models.Purchase, error) {
	var approvedAt any
	if t.To == models.StatusConfirmed {
		approvedAt = t.At
	}
	p, err := scanPurchase(s.q(ctx).QueryRowContext(ctx, `
		UPDATE coin_purchase_requests
		SET status = $3,
			approved_by = $4,
			approved_at = COALESCE($5, approved_at),
			notes = CASE WHEN $3 = 'confirmed' THEN $6 ELSE notes END,
			rejection_reason = CASE WHEN $3 = 'rejected' THEN $7 ELSE rejection_reason END,
			updated_at = $8
		WHERE id = $1 AND status = ANY($2::text[])
		RETURNING `+purchaseColumns,
		uuid.UUID(purchaseID), pq.Array(statusStrings(from)), string(t.To), uuid.UUID(t.ApprovedBy),
		approvedAt, t.Notes, t.RejectionReason, t.At))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition purchase: %w", err)
	}
	if _, getErr := s.Get(ctx, purchaseID); getErr != nil {
		return nil, getErr
	}
	return nil, sentinel.ErrConflict
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]models.Purchase, int, error) {
	var agent any
	if filter.AgentID != nil {
		agent = uuid.UUID(*filter.AgentID)
	}
	statuses := pq.Array(statusStrings(filter.Statuses))

	var total int
	if err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM coin_purchase_requests
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
		  AND ($2::uuid IS NULL OR agent_id = $2::uuid)
	`, statuses, agent).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+purchaseColumns+` FROM coin_purchase_requests
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
		  AND ($2::uuid IS NULL OR agent_id = $2::uuid)
		ORDER BY created_at DESC, id ASC
		LIMIT $3 OFFSET $4
	`, statuses, agent, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []models.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, total, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE status = 'confirmed'), 0),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'verifying'))
		FROM coin_purchase_requests
	`).Scan(&st.TotalCoinsIssued, &st.ConfirmedCount, &st.PendingCount)
	if err != nil {
		return models.Stats{}, fmt.Errorf("purchase stats: %w", err)
	}
	return st, nil
}

// DeleteUnconfirmed removes a purchase that never credited coins.
func (s *PostgresStore) DeleteUnconfirmed(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error) {
	p, err := scanPurchase(s.q(ctx).QueryRowContext(ctx, `
		DELETE FROM coin_purchase_requests
		WHERE id = $1 AND status <> 'confirmed'
		RETURNING `+purchaseColumns, uuid.UUID(purchaseID)))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete purchase: %w", err)
	}
	if _, getErr := s.Get(ctx, purchaseID); getErr != nil {
		return nil, getErr
	}
	return nil, sentinel.ErrInvalidState
}

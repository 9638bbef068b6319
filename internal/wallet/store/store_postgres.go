package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coinledger/internal/platform/postgres"
	"coinledger/internal/wallet/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
)

// PostgresStore persists payment wallets. The unique index on address is
// what rejects duplicates under concurrent creates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const walletColumns = `id, currency, network, address, qr_code_url, is_active, created_by, created_at, updated_at`

func (s *PostgresStore) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*models.CryptoWallet, error) {
	var (
		w         models.CryptoWallet
		rawID     uuid.UUID
		createdBy uuid.UUID
	)
	if err := row.Scan(&rawID, &w.Currency, &w.Network, &w.Address, &w.QRCodeURL, &w.IsActive,
		&createdBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.ID = id.CryptoWalletID(rawID)
	w.CreatedBy = id.UserID(createdBy)
	return &w, nil
}

func (s *PostgresStore) Create(ctx context.Context, w *models.CryptoWallet) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO crypto_wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(w.ID), string(w.Currency), string(w.Network), w.Address, w.QRCodeURL, w.IsActive,
		uuid.UUID(w.CreatedBy), w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert crypto wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.CryptoWallet, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+walletColumns+` FROM crypto_wallets
		WHERE is_active
		ORDER BY currency, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list crypto wallets: %w", err)
	}
	defer rows.Close()

	out := []models.CryptoWallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crypto wallet: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, walletID id.CryptoWalletID, at time.Time) (*models.CryptoWallet, error) {
	w, err := scanWallet(s.q(ctx).QueryRowContext(ctx, `
		UPDATE crypto_wallets
		SET is_active = FALSE,
			updated_at = CASE WHEN is_active THEN $2 ELSE updated_at END
		WHERE id = $1
		RETURNING `+walletColumns,
		uuid.UUID(walletID), at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("deactivate crypto wallet: %w", err)
	}
	return w, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coinledger/internal/bulk/models"
	"coinledger/internal/platform/postgres"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/sentinel"
	txcontext "coinledger/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bulkColumns = `id, sponsor_id, total_amount, recipient_count, distribution_type, status,
	actual_recipient_count, processed_at, created_at`

func (s *PostgresStore) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBulk(row rowScanner) (*models.BulkDonation, error) {
	var (
		b           models.BulkDonation
		rawID       uuid.UUID
		rawSponsor  uuid.UUID
		processedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawSponsor, &b.TotalAmount, &b.RecipientCount, &b.DistributionType, &b.Status,
		&b.ActualRecipientCount, &processedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BulkDonationID(rawID)
	b.SponsorID = id.UserID(rawSponsor)
	if processedAt.Valid {
		at := processedAt.Time
		b.ProcessedAt = &at
	}
	return &b, nil
}

func (s *PostgresStore) Create(ctx context.Context, b *models.BulkDonation) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO bulk_donations (id, sponsor_id, total_amount, recipient_count, distribution_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(b.ID), uuid.UUID(b.SponsorID), b.TotalAmount, b.RecipientCount, string(b.DistributionType), string(b.Status), b.CreatedAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("sponsor %s: %w", b.SponsorID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert bulk donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	return s.get(ctx, `SELECT `+bulkColumns+` FROM bulk_donations WHERE id = $1`, bulkID)
}

// GetForUpdate reads and row-locks the bulk donation so concurrent processing
// attempts serialize. Must run inside a transaction.
func (s *PostgresStore) GetForUpdate(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	return s.get(ctx, `SELECT `+bulkColumns+` FROM bulk_donations WHERE id = $1 FOR UPDATE`, bulkID)
}

func (s *PostgresStore) get(ctx context.Context, query string, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	b, err := scanBulk(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(bulkID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get bulk donation: %w", err)
	}
	return b, nil
}

// CreateDonations inserts all shares of a bulk donation in one statement.
func (s *PostgresStore) CreateDonations(ctx context.Context, bulkID id.BulkDonationID, donations []models.Donation) error {
	if len(donations) == 0 {
		return nil
	}
	ids := make([]string, len(donations))
	donors := make([]string, len(donations))
	recipients := make([]string, len(donations))
	amounts := make([]int64, len(donations))
	for i, d := range donations {
		ids[i] = d.ID.String()
		donors[i] = d.DonorID.String()
		recipients[i] = d.RecipientID.String()
		amounts[i] = d.Amount
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO donations (id, donor_id, recipient_id, amount, bulk_donation_id, created_at)
		SELECT d.id, d.donor_id, d.recipient_id, d.amount, $5, $6
		FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::bigint[]) AS d(id, donor_id, recipient_id, amount)
	`, pq.Array(ids), pq.Array(donors), pq.Array(recipients), pq.Array(amounts), uuid.UUID(bulkID), donations[0].CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("donation reference: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert donations: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDonations(ctx context.Context, bulkID id.BulkDonationID) ([]models.Donation, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, donor_id, recipient_id, amount, created_at
		FROM donations
		WHERE bulk_donation_id = $1
		ORDER BY amount DESC, id ASC
	`, uuid.UUID(bulkID))
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		var d models.Donation
		var rawID, rawDonor, rawRecip uuid.UUID
		if err := rows.Scan(&rawID, &rawDonor, &rawRecip, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		link := bulkID
		d.ID, d.DonorID, d.RecipientID, d.BulkDonationID = id.DonationID(rawID), id.UserID(rawDonor), id.UserID(rawRecip), &link
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return donations, nil
}

// MarkProcessed flips a pending bulk donation to processed. Zero affected
// rows with an existing row means it was already processed.
func (s *PostgresStore) MarkProcessed(ctx context.Context, bulkID id.BulkDonationID, actual int, at time.Time) (*models.BulkDonation, error) {
	b, err := scanBulk(s.q(ctx).QueryRowContext(ctx, `
		UPDATE bulk_donations
		SET status = 'processed', actual_recipient_count = $2, processed_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+bulkColumns, uuid.UUID(bulkID), actual, at))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark bulk donation processed: %w", err)
	}
	if _, getErr := s.Get(ctx, bulkID); getErr != nil {
		return nil, getErr
	}
	return nil, sentinel.ErrConflict
}

// DeletePending removes a bulk donation that has not been split.
func (s *PostgresStore) DeletePending(ctx context.Context, bulkID id.BulkDonationID) (*models.BulkDonation, error) {
	b, err := scanBulk(s.q(ctx).QueryRowContext(ctx, `
		DELETE FROM bulk_donations
		WHERE id = $1 AND status = 'pending'
		RETURNING `+bulkColumns, uuid.UUID(bulkID)))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delete bulk donation: %w", err)
	}
	if _, getErr := s.Get(ctx, bulkID); getErr != nil {
		return nil, getErr
	}
	return nil, sentinel.ErrInvalidState
}

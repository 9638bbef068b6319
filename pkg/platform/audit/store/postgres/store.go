package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "coinledger/pkg/domain"
	audit "coinledger/pkg/platform/audit"
	txcontext "coinledger/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each Append writes the queryable record and an outbox row in the caller's
// transaction; the outbox relay publishes outbox rows to Kafka.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, actor_id, operation, target_id, payload, occurred_at,
	request_id, client_ip, actor_device, digest`

// Append writes the record and its outbox entry.
func (s *Store) Append(ctx context.Context, record audit.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	event, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	q := txcontext.QuerierFrom(ctx, s.db)

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_records (`+recordColumns+`, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.ActorID),
		string(record.Operation),
		record.TargetID,
		payload,
		record.Timestamp,
		record.RequestID,
		record.ClientIP,
		record.ActorDevice,
		record.Digest,
		string(record.Category()),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_outbox (record_id, aggregate_key, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		uuid.UUID(record.ID),
		record.TargetID,
		string(record.Operation),
		event,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListRecent returns the N most recent records.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM audit_records
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByTarget returns every record for a target, oldest first.
func (s *Store) ListByTarget(ctx context.Context, targetID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM audit_records
		WHERE target_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ClaimBatch locks the oldest unpublished outbox rows. Concurrent relays skip
// rows another relay holds.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, aggregate_key, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox rows.
func (s *Store) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = $2
		WHERE id = ANY($1) AND published_at IS NULL
	`, pq.Array(ids), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record

	for rows.Next() {
		var (
			r         audit.Record
			recordID  uuid.UUID
			actorID   uuid.UUID
			operation string
			payload   []byte
		)
		err := rows.Scan(
			&recordID,
			&actorID,
			&operation,
			&r.TargetID,
			&payload,
			&r.Timestamp,
			&r.RequestID,
			&r.ClientIP,
			&r.ActorDevice,
			&r.Digest,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		// UseNumber keeps integer balances exact so Verify recomputes the same digest.
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&r.Payload); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}

		r.ID = id.AuditRecordID(recordID)
		r.ActorID = id.UserID(actorID)
		r.Operation = audit.Operation(operation)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

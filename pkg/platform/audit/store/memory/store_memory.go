package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	audit "coinledger/pkg/platform/audit"
)

type outboxRow struct {
	entry       audit.OutboxEntry
	publishedAt *time.Time
}

// InMemoryStore keeps audit records and their outbox rows in memory. It
// participates in tx.MemoryRunner through Snapshot.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
	outbox  []outboxRow
	nextID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.outbox = nil
}

// Snapshot captures the current state and returns a function that restores it.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	records := append([]audit.Record(nil), s.records...)
	outbox := append([]outboxRow(nil), s.outbox...)
	nextID := s.nextID
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records = records
		s.outbox = outbox
		s.nextID = nextID
	}
}

func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	s.nextID++
	s.outbox = append(s.outbox, outboxRow{entry: audit.OutboxEntry{
		ID:        s.nextID,
		Key:       record.TargetID,
		EventType: string(record.Operation),
		Payload:   payload,
		CreatedAt: record.Timestamp,
	}})
	return nil
}

// ListRecent returns the most recent records first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// ListByTarget returns records for a target in append order.
func (s *InMemoryStore) ListByTarget(_ context.Context, targetID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, r := range s.records {
		if r.TargetID == targetID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAll returns every record in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record(nil), s.records...), nil
}

// ClaimBatch returns the oldest unpublished entries.
func (s *InMemoryStore) ClaimBatch(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.OutboxEntry
	for _, row := range s.outbox {
		if row.publishedAt == nil {
			out = append(out, row.entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for i := range s.outbox {
		if _, ok := marked[s.outbox[i].entry.ID]; ok && s.outbox[i].publishedAt == nil {
			t := at
			s.outbox[i].publishedAt = &t
		}
	}
	return nil
}

// Pending reports how many outbox entries are unpublished.
func (s *InMemoryStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.outbox {
		if row.publishedAt == nil {
			n++
		}
	}
	return n
}

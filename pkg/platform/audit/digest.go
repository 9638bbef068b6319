package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

// canonicalRecord fixes field order and timestamp format for hashing.
type canonicalRecord struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	Operation   Operation `json:"operation"`
	TargetID    string    `json:"target_id"`
	Payload     Payload   `json:"payload"`
	Timestamp   string    `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	ClientIP    string    `json:"client_ip"`
	ActorDevice string    `json:"actor_device"`
}

// ComputeDigest returns the hex SHA3-256 of the record's canonical encoding.
// The Digest field itself is excluded.
func ComputeDigest(r Record) (string, error) {
	b, err := json.Marshal(canonicalRecord{
		ID:          r.ID.String(),
		ActorID:     r.ActorID.String(),
		Operation:   r.Operation,
		TargetID:    r.TargetID,
		Payload:     r.Payload,
		Timestamp:   r.Timestamp.UTC().Format(time.RFC3339Nano),
		RequestID:   r.RequestID,
		ClientIP:    r.ClientIP,
		ActorDevice: r.ActorDevice,
	})
	if err != nil {
		return "", fmt.Errorf("encode audit record: %w", err)
	}
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Seal normalizes the timestamp to storage precision and sets Digest.
func Seal(r Record) (Record, error) {
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Microsecond)
	digest, err := ComputeDigest(r)
	if err != nil {
		return Record{}, err
	}
	r.Digest = digest
	return r, nil
}

// Verify reports whether the stored digest still matches the record contents.
func Verify(r Record) bool {
	digest, err := ComputeDigest(r)
	if err != nil {
		return false
	}
	return digest == r.Digest
}

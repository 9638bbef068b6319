// Package domain holds identifier primitives shared across bounded contexts.
//
// Every aggregate has its own ID type so the compiler rejects passing an
// AgentID where a UserID is expected. All IDs are UUIDs; parsing rejects
// empty, malformed and nil values at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "coinledger/pkg/domain-errors"
)

type (
	AgentID        uuid.UUID
	UserID         uuid.UUID
	PurchaseID     uuid.UUID
	BulkDonationID uuid.UUID
	DonationID     uuid.UUID
	AuditRecordID  uuid.UUID
	CryptoWalletID uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

func unmarshalUUID(text []byte, kind string) (uuid.UUID, error) {
	return parseUUID(string(text), kind)
}

func ParseAgentID(s string) (AgentID, error) {
	u, err := parseUUID(s, "agent id")
	return AgentID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParsePurchaseID(s string) (PurchaseID, error) {
	u, err := parseUUID(s, "purchase id")
	return PurchaseID(u), err
}

func ParseBulkDonationID(s string) (BulkDonationID, error) {
	u, err := parseUUID(s, "bulk donation id")
	return BulkDonationID(u), err
}

func ParseDonationID(s string) (DonationID, error) {
	u, err := parseUUID(s, "donation id")
	return DonationID(u), err
}

func ParseAuditRecordID(s string) (AuditRecordID, error) {
	u, err := parseUUID(s, "audit record id")
	return AuditRecordID(u), err
}

func ParseCryptoWalletID(s string) (CryptoWalletID, error) {
	u, err := parseUUID(s, "wallet id")
	return CryptoWalletID(u), err
}

func (id AgentID) String() string { return uuid.UUID(id).String() }
func (id AgentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AgentID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *AgentID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "agent id")
	*id = AgentID(u)
	return err
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *UserID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "user id")
	*id = UserID(u)
	return err
}

func (id PurchaseID) String() string { return uuid.UUID(id).String() }
func (id PurchaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PurchaseID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *PurchaseID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "purchase id")
	*id = PurchaseID(u)
	return err
}

func (id BulkDonationID) String() string { return uuid.UUID(id).String() }
func (id BulkDonationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BulkDonationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *BulkDonationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "bulk donation id")
	*id = BulkDonationID(u)
	return err
}

func (id DonationID) String() string { return uuid.UUID(id).String() }
func (id DonationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *DonationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "donation id")
	*id = DonationID(u)
	return err
}

func (id AuditRecordID) String() string { return uuid.UUID(id).String() }
func (id AuditRecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AuditRecordID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *AuditRecordID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "audit record id")
	*id = AuditRecordID(u)
	return err
}

func (id CryptoWalletID) String() string { return uuid.UUID(id).String() }
func (id CryptoWalletID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CryptoWalletID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *CryptoWalletID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "wallet id")
	*id = CryptoWalletID(u)
	return err
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "coinledger/pkg/domain"
)

// Operation bounds.
const (
	MaxMintAmount     int64 = 1_000_000
	MaxOverrideAmount int64 = 1_000_000
)

// Agent holds coins that it sells on to users.
//
// Invariants:
//   - CoinBalance >= 0
//   - TotalCoinsStocked never decreases
type Agent struct {
	ID                id.AgentID `json:"id"`
	Code              string     `json:"agent_code"`
	CoinBalance       int64      `json:"coin_balance"`
	TotalCoinsStocked int64      `json:"total_coins_stocked"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UserAccount carries the balances admins may override and the attributes
// bulk distribution uses to pick recipients.
//
// CharityCoinsBalance is never negative. WalletBalance is signed.
type UserAccount struct {
	ID                  id.UserID       `json:"id"`
	DisplayName         string          `json:"display_name"`
	CharityCoinsBalance int64           `json:"charity_coins_balance"`
	WalletBalance       decimal.Decimal `json:"wallet_balance"`
	IsReceiving         bool            `json:"is_receiving"`
	TrustScore          float64         `json:"trust_score"`
	IsBanned            bool            `json:"is_banned"`
	LastActiveAt        time.Time       `json:"last_active_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Field is a closed set of integer balance columns the store may increment.
type Field int

const (
	FieldAgentCoins Field = iota + 1
	FieldAgentStocked
	FieldUserCoins
)

func (f Field) String() string {
	switch f {
	case FieldAgentCoins:
		return "agent.coin_balance"
	case FieldAgentStocked:
		return "agent.total_coins_stocked"
	case FieldUserCoins:
		return "user.charity_coins_balance"
	default:
		return "unknown"
	}
}

// Monotonic reports whether the field only accepts non-negative deltas.
// Every integer field is additionally floored at zero.
func (f Field) Monotonic() bool {
	return f == FieldAgentStocked
}

// OnAgent reports whether the field lives on the agents table.
func (f Field) OnAgent() bool {
	return f == FieldAgentCoins || f == FieldAgentStocked
}

// BalanceChange is the before/after pair of one atomic increment.
type BalanceChange struct {
	Old int64 `json:"old_balance"`
	New int64 `json:"new_balance"`
}

// WalletChange is BalanceChange for the decimal wallet.
type WalletChange struct {
	Old decimal.Decimal `json:"old_balance"`
	New decimal.Decimal `json:"new_balance"`
}

// BalanceType selects which user balance an override targets.
type BalanceType string

const (
	BalanceTypeWallet BalanceType = "wallet"
	BalanceTypeCoins  BalanceType = "coins"
)

func (b BalanceType) IsValid() bool {
	return b == BalanceTypeWallet || b == BalanceTypeCoins
}

// MintResult is returned by mint, burn and purchase credit.
type MintResult struct {
	AgentID      id.AgentID    `json:"agent_id"`
	Amount       int64         `json:"amount"`
	Balance      BalanceChange `json:"balance"`
	TotalStocked int64         `json:"total_coins_stocked"`
}

// TransferResult reports both sides of a transfer.
type TransferResult struct {
	FromAgentID id.AgentID    `json:"from_agent_id"`
	ToAgentID   id.AgentID    `json:"to_agent_id"`
	Amount      int64         `json:"amount"`
	From        BalanceChange `json:"from"`
	To          BalanceChange `json:"to"`
}

// OverrideResult reports an admin balance override. OldBalance and NewBalance
// are decimal for both balance types so the response shape is uniform.
type OverrideResult struct {
	UserID         id.UserID       `json:"user_id"`
	BalanceType    BalanceType     `json:"balance_type"`
	Amount         decimal.Decimal `json:"amount"`
	OldBalance     decimal.Decimal `json:"old_balance"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	NegativeResult bool            `json:"negative_result,omitempty"`
}

// Totals is the ledger-wide coin sum used by reporting.
type Totals struct {
	AgentCoins int64 `json:"total_agent_coins"`
	UserCoins  int64 `json:"total_user_coins"`
	AgentCount int64 `json:"agent_count"`
}

// Machine-readable failure reasons carried on domain errors.
const (
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonAgentNotFound       = "AGENT_NOT_FOUND"
	ReasonUserNotFound        = "USER_NOT_FOUND"
	ReasonSameAgent           = "SAME_AGENT"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonInvalidBalanceType  = "INVALID_BALANCE_TYPE"
	ReasonReasonTooLong       = "REASON_TOO_LONG"
)

// MaxReasonLength bounds the free-text reason stored on audit records.
const MaxReasonLength = 500

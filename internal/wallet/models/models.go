package models

import (
	"net/url"
	"slices"
	"strings"
	"time"

	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
)

// Currency is a coin agents may pay in.
type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyUSDT Currency = "USDT"
	CurrencyETH  Currency = "ETH"
)

// Network is the chain a payment address lives on.
type Network string

const (
	NetworkBitcoin Network = "Bitcoin"
	NetworkTRC20   Network = "TRC20"
	NetworkERC20   Network = "ERC20"
	NetworkBEP20   Network = "BEP20"
)

var (
	currencies = []Currency{CurrencyBTC, CurrencyUSDT, CurrencyETH}
	networks   = []Network{NetworkBitcoin, NetworkTRC20, NetworkERC20, NetworkBEP20}
)

func (c Currency) IsValid() bool { return slices.Contains(currencies, c) }
func (n Network) IsValid() bool  { return slices.Contains(networks, n) }

// Address length bounds.
const (
	MinAddressLength = 20
	MaxAddressLength = 100
)

const (
	ReasonWalletNotFound   = "WALLET_NOT_FOUND"
	ReasonWalletExists     = "WALLET_EXISTS"
	ReasonInvalidCurrency  = "INVALID_CURRENCY"
	ReasonInvalidNetwork   = "INVALID_NETWORK"
	ReasonInvalidAddress   = "INVALID_ADDRESS"
	ReasonInvalidQRCodeURL = "INVALID_QR_CODE_URL"
)

// CryptoWallet is a platform-owned address agents pay into when buying
// coins. Addresses are unique across active and inactive wallets.
type CryptoWallet struct {
	ID        id.CryptoWalletID `json:"id"`
	Currency  Currency          `json:"currency"`
	Network   Network           `json:"network"`
	Address   string            `json:"address"`
	QRCodeURL string            `json:"qr_code_url,omitempty"`
	IsActive  bool              `json:"is_active"`
	CreatedBy id.UserID         `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type CreateRequest struct {
	Currency  Currency `json:"currency"`
	Network   Network  `json:"network"`
	Address   string   `json:"address"`
	QRCodeURL string   `json:"qr_code_url"`
}

func (r *CreateRequest) Normalize() {
	r.Currency = Currency(strings.ToUpper(strings.TrimSpace(string(r.Currency))))
	r.Network = Network(strings.TrimSpace(string(r.Network)))
	r.Address = strings.TrimSpace(r.Address)
	r.QRCodeURL = strings.TrimSpace(r.QRCodeURL)
}

func (r *CreateRequest) Validate() error {
	if !r.Currency.IsValid() {
		return dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidCurrency, "currency must be BTC, USDT or ETH")
	}
	if !r.Network.IsValid() {
		return dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidNetwork, "network must be Bitcoin, TRC20, ERC20 or BEP20")
	}
	if n := len(r.Address); n < MinAddressLength || n > MaxAddressLength {
		return dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidAddress, "address must be between 20 and 100 characters")
	}
	if r.QRCodeURL != "" {
		u, err := url.ParseRequestURI(r.QRCodeURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidQRCodeURL, "qr_code_url must be an absolute URI")
		}
	}
	return nil
}

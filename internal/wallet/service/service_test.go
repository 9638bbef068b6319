package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"coinledger/internal/wallet/models"
	"coinledger/internal/wallet/store"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/audit/publishers/compliance"
	auditmemory "coinledger/pkg/platform/audit/store/memory"
	txcontext "coinledger/pkg/platform/tx"
	"coinledger/pkg/requestcontext"
)

const (
	btcAddress  = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"
	tronAddress = "TQ5Nf9yN1a2b3c4d5e6f7g8h9i0jKLmnoP"
)

type failingAuditor struct{}

func (failingAuditor) Emit(context.Context, audit.Record) error {
	return errors.New("audit store unavailable")
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	wallets *store.InMemoryStore
	records *auditmemory.InMemoryStore
	runner  *txcontext.MemoryRunner
	service *Service
	admin   id.UserID
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.admin = id.UserID(uuid.New())
	s.ctx = requestcontext.WithTime(requestcontext.WithActor(context.Background(), s.admin, "admin"), s.now)

	s.wallets = store.NewInMemory()
	s.records = auditmemory.NewInMemoryStore()
	s.runner = txcontext.NewMemoryRunner(s.wallets, s.records)

	var err error
	s.service, err = New(s.wallets, s.runner, compliance.New(s.records))
	s.Require().NoError(err)
}

func (s *ServiceSuite) create(currency models.Currency, network models.Network, address string) *models.CryptoWallet {
	w, err := s.service.Create(s.ctx, s.admin, models.CreateRequest{Currency: currency, Network: network, Address: address})
	s.Require().NoError(err)
	return w
}

func (s *ServiceSuite) TestCreate() {
	s.Run("new wallet is active and audited", func() {
		w := s.create(models.CurrencyUSDT, models.NetworkTRC20, tronAddress)
		s.True(w.IsActive)
		s.Equal(s.admin, w.CreatedBy)
		s.Equal(s.now, w.CreatedAt)

		records, err := s.records.ListByTarget(s.ctx, w.ID.String())
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(audit.OpWalletCreated, records[0].Operation)
	})

	s.Run("duplicate address conflicts", func() {
		_, err := s.service.Create(s.ctx, s.admin, models.CreateRequest{
			Currency: models.CurrencyUSDT, Network: models.NetworkERC20, Address: tronAddress,
		})
		s.True(dErrors.HasReason(err, models.ReasonWalletExists))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("short address is rejected", func() {
		_, err := s.service.Create(s.ctx, s.admin, models.CreateRequest{
			Currency: models.CurrencyBTC, Network: models.NetworkBitcoin, Address: "bc1short",
		})
		s.True(dErrors.HasReason(err, models.ReasonInvalidAddress))
	})

	s.Run("qr code must be an absolute uri", func() {
		_, err := s.service.Create(s.ctx, s.admin, models.CreateRequest{
			Currency: models.CurrencyBTC, Network: models.NetworkBitcoin, Address: btcAddress, QRCodeURL: "qr.png",
		})
		s.True(dErrors.HasReason(err, models.ReasonInvalidQRCodeURL))
	})
}

func (s *ServiceSuite) TestCreateRollsBackWhenAuditFails() {
	svc, err := New(s.wallets, s.runner, failingAuditor{})
	s.Require().NoError(err)

	_, err = svc.Create(s.ctx, s.admin, models.CreateRequest{Currency: models.CurrencyBTC, Network: models.NetworkBitcoin, Address: btcAddress})
	s.Require().Error(err)

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Empty(active)
}

func (s *ServiceSuite) TestDeactivate() {
	usdt := s.create(models.CurrencyUSDT, models.NetworkTRC20, tronAddress)
	btc := s.create(models.CurrencyBTC, models.NetworkBitcoin, btcAddress)

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(models.CurrencyBTC, active[0].Currency)

	s.Run("deactivated wallet leaves the active list", func() {
		w, err := s.service.Deactivate(s.ctx, s.admin, usdt.ID)
		s.Require().NoError(err)
		s.False(w.IsActive)

		active, err := s.service.ListActive(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal(btc.ID, active[0].ID)
	})

	s.Run("address stays reserved", func() {
		_, err := s.service.Create(s.ctx, s.admin, models.CreateRequest{
			Currency: models.CurrencyUSDT, Network: models.NetworkTRC20, Address: tronAddress,
		})
		s.True(dErrors.HasReason(err, models.ReasonWalletExists))
	})

	s.Run("unknown wallet", func() {
		_, err := s.service.Deactivate(s.ctx, s.admin, id.CryptoWalletID(uuid.New()))
		s.True(dErrors.HasReason(err, models.ReasonWalletNotFound))
	})
}

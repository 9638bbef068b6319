// Package app builds the service graph shared by cmd/server and the router
// tests. It owns no process lifecycle.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coinledger/internal/admin"
	"coinledger/internal/admin/adapters"
	auditapi "coinledger/internal/audit"
	bulkhandler "coinledger/internal/bulk/handler"
	bulkmetrics "coinledger/internal/bulk/metrics"
	bulkservice "coinledger/internal/bulk/service"
	bulkstore "coinledger/internal/bulk/store"
	httpapi "coinledger/internal/http"
	ledgerhandler "coinledger/internal/ledger/handler"
	ledgermetrics "coinledger/internal/ledger/metrics"
	ledgermodels "coinledger/internal/ledger/models"
	ledgerservice "coinledger/internal/ledger/service"
	ledgerstore "coinledger/internal/ledger/store"
	"coinledger/internal/notification"
	"coinledger/internal/platform/metrics"
	purchasehandler "coinledger/internal/purchase/handler"
	purchasemetrics "coinledger/internal/purchase/metrics"
	purchaseservice "coinledger/internal/purchase/service"
	purchasestore "coinledger/internal/purchase/store"
	ratelimit "coinledger/internal/ratelimit/middleware"
	wallethandler "coinledger/internal/wallet/handler"
	walletservice "coinledger/internal/wallet/service"
	walletstore "coinledger/internal/wallet/store"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/audit/publishers/compliance"
	auditmemory "coinledger/pkg/platform/audit/store/memory"
	auditpostgres "coinledger/pkg/platform/audit/store/postgres"
	"coinledger/pkg/platform/middleware/auth"
	txcontext "coinledger/pkg/platform/tx"
)

type LedgerStore interface {
	ledgerservice.Store
	bulkservice.Directory
	CreateAgent(ctx context.Context, agent *ledgermodels.Agent) error
	CreateUser(ctx context.Context, user *ledgermodels.UserAccount) error
}

type PurchaseStore interface {
	purchaseservice.Store
	adapters.PurchaseStore
}

type BulkStore interface {
	bulkservice.Store
	adapters.BulkStore
}

type AuditStore interface {
	audit.Store
	audit.Outbox
}

// Stores is one consistent persistence backend plus the runner that scopes
// transactions over it.
type Stores struct {
	Ledger    LedgerStore
	Purchases PurchaseStore
	Bulk      BulkStore
	Audit     AuditStore
	Wallets   walletservice.Store
	Runner    txcontext.Runner
}

// MemoryStores keeps everything in process. The runner snapshots every store
// so a failed transaction restores all of them.
func MemoryStores() Stores {
	ledger := ledgerstore.NewInMemory()
	purchases := purchasestore.NewInMemory()
	bulk := bulkstore.NewInMemory()
	auditLog := auditmemory.NewInMemoryStore()
	wallets := walletstore.NewInMemory()
	return Stores{
		Ledger:    ledger,
		Purchases: purchases,
		Bulk:      bulk,
		Audit:     auditLog,
		Wallets:   wallets,
		Runner:    txcontext.NewMemoryRunner(ledger, purchases, bulk, auditLog, wallets),
	}
}

func PostgresStores(db *sql.DB, txTimeout time.Duration) Stores {
	return Stores{
		Ledger:    ledgerstore.NewPostgres(db),
		Purchases: purchasestore.NewPostgres(db),
		Bulk:      bulkstore.NewPostgres(db),
		Audit:     auditpostgres.New(db),
		Wallets:   walletstore.NewPostgres(db),
		Runner:    txcontext.NewSQLRunner(db, txcontext.WithTimeout(txTimeout), txcontext.WithIsolation(sql.LevelReadCommitted)),
	}
}

type Options struct {
	Logger    *slog.Logger
	Validator auth.JWTValidator
	Notifier  notification.Notifier
	Health    map[string]httpapi.HealthCheck
	RateLimit *ratelimit.Middleware

	// EnableMetrics registers the prometheus collectors. They are process
	// global, so only one App per process may set it.
	EnableMetrics bool
}

type App struct {
	Router    http.Handler
	Ledger    *ledgerservice.Service
	Purchases *purchaseservice.Service
	Bulk      *bulkservice.Service
	Admin     *admin.Service
	Audit     *auditapi.Service
	Wallets   *walletservice.Service

	publisher *compliance.Publisher
}

func New(stores Stores, opts Options) (*App, error) {
	if opts.Logger == nil {
		return nil, errors.New("app requires a logger")
	}
	if opts.Validator == nil {
		return nil, errors.New("app requires a token validator")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.Noop{}
	}

	var httpMetrics *metrics.Metrics
	ledgerOpts := []ledgerservice.Option{ledgerservice.WithLogger(opts.Logger)}
	purchaseOpts := []purchaseservice.Option{purchaseservice.WithLogger(opts.Logger), purchaseservice.WithNotifier(notifier)}
	bulkOpts := []bulkservice.Option{bulkservice.WithLogger(opts.Logger), bulkservice.WithNotifier(notifier)}
	complianceOpts := []compliance.Option{compliance.WithLogger(opts.Logger)}
	if opts.EnableMetrics {
		httpMetrics = metrics.New()
		ledgerOpts = append(ledgerOpts, ledgerservice.WithMetrics(ledgermetrics.New()))
		purchaseOpts = append(purchaseOpts, purchaseservice.WithMetrics(purchasemetrics.New()))
		bulkOpts = append(bulkOpts, bulkservice.WithMetrics(bulkmetrics.New()))
		complianceOpts = append(complianceOpts, compliance.WithMetrics(compliance.NewMetrics()))
	}

	publisher := compliance.New(stores.Audit, complianceOpts...)

	ledgerSvc, err := ledgerservice.New(stores.Ledger, stores.Runner, publisher, ledgerOpts...)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	purchaseSvc, err := purchaseservice.New(stores.Purchases, stores.Runner, ledgerSvc, publisher, purchaseOpts...)
	if err != nil {
		return nil, fmt.Errorf("purchase service: %w", err)
	}
	bulkSvc, err := bulkservice.New(stores.Bulk, stores.Ledger, stores.Runner, publisher, bulkOpts...)
	if err != nil {
		return nil, fmt.Errorf("bulk service: %w", err)
	}
	adminSvc, err := admin.New(stores.Ledger, stores.Purchases, map[admin.EntityKind]admin.Deleter{
		admin.KindCoinPurchaseRequest: adapters.NewPurchaseDeleter(stores.Purchases),
		admin.KindBulkDonation:        adapters.NewBulkDeleter(stores.Bulk),
	}, stores.Runner, publisher, admin.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("admin service: %w", err)
	}
	auditSvc, err := auditapi.NewService(stores.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}
	walletSvc, err := walletservice.New(stores.Wallets, stores.Runner, publisher, walletservice.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Validator: opts.Validator,
		Logger:    opts.Logger,
		Metrics:   httpMetrics,
		Health:    opts.Health,
		RateLimit: opts.RateLimit,
		Ledger:    ledgerhandler.New(ledgerSvc, opts.Logger),
		Purchases: purchasehandler.New(purchaseSvc, opts.Logger),
		Bulk:      bulkhandler.New(bulkSvc, opts.Logger),
		Admin:     admin.NewHandler(adminSvc, opts.Logger),
		Audit:     auditapi.NewHandler(auditSvc),
		Wallets:   wallethandler.New(walletSvc, opts.Logger),
	})

	return &App{
		Router:    router,
		Ledger:    ledgerSvc,
		Purchases: purchaseSvc,
		Bulk:      bulkSvc,
		Admin:     adminSvc,
		Audit:     auditSvc,
		Wallets:   walletSvc,
		publisher: publisher,
	}, nil
}

// Close flushes the audit publisher.
func (a *App) Close() error {
	return a.publisher.Close()
}

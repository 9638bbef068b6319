package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"coinledger/internal/app"
	httpapi "coinledger/internal/http"
	jwttoken "coinledger/internal/jwt_token"
	ledgerstore "coinledger/internal/ledger/store"
	"coinledger/internal/notification"
	"coinledger/internal/platform/config"
	"coinledger/internal/platform/httpserver"
	"coinledger/internal/platform/kafka"
	"coinledger/internal/platform/logger"
	"coinledger/internal/platform/postgres"
	"coinledger/internal/platform/redis"
	ratelimitmetrics "coinledger/internal/ratelimit/metrics"
	ratelimit "coinledger/internal/ratelimit/middleware"
	ratelimitmodels "coinledger/internal/ratelimit/models"
	ratelimitstore "coinledger/internal/ratelimit/store"
	"coinledger/pkg/platform/audit/outbox"
)

// main wires the backends chosen by configuration, serves HTTP and runs the
// audit relay until a signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthCheck{}
	var background []func(ctx context.Context) error

	stores := app.MemoryStores()
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		stores = app.PostgresStores(db, cfg.Database.TxTimeout)
		health["postgres"] = postgres.Health(db)

		if len(cfg.Kafka.Brokers) > 0 {
			producer, err := kafka.NewProducer(cfg.Kafka)
			if err != nil {
				return fmt.Errorf("kafka producer: %w", err)
			}
			defer producer.Close()
			if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				return fmt.Errorf("ensure audit topic: %w", err)
			}
			health["kafka"] = producer.Health

			relay := outbox.NewRelay(stores.Audit, stores.Runner, producer,
				outbox.WithInterval(cfg.Outbox.PollInterval),
				outbox.WithBatchSize(cfg.Outbox.BatchSize),
				outbox.WithLogger(log),
				outbox.WithMetrics(outbox.NewMetrics()),
			)
			background = append(background, relay.Run)
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.SeedDemo {
		if err := ledgerstore.SeedDemo(ctx, stores.Ledger, time.Now()); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		log.Info("seeded demo agents and users")
	}

	var notifier notification.Notifier = notification.Noop{}
	var async *notification.Async
	var limiterStore ratelimit.Store = ratelimitstore.NewInMemory()
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if client != nil {
		defer client.Close()
		health["redis"] = client.Health
		async = notification.NewAsync(notification.NewRedis(client, notification.DefaultChannel),
			notification.WithLogger(log),
			notification.WithMetrics(notification.NewMetrics()))
		notifier = async
		limiterStore = ratelimitstore.NewRedis(client)
	}
	limiter := ratelimit.New(limiterStore, map[ratelimitmodels.Class]ratelimitmodels.Limit{
		ratelimitmodels.ClassCoinOps:   ratelimitmodels.PerMinute(cfg.Limits.CoinOpsPerMinute),
		ratelimitmodels.ClassGodMode:   ratelimitmodels.PerMinute(cfg.Limits.GodModePerMinute),
		ratelimitmodels.ClassCorporate: ratelimitmodels.PerMinute(cfg.Limits.CorporatePerMinute),
	}, log, ratelimit.WithDisabled(cfg.Limits.Disabled), ratelimit.WithMetrics(ratelimitmetrics.New()))

	a, err := app.New(stores, app.Options{
		Logger:        log,
		Validator:     jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)),
		Notifier:      notifier,
		Health:        health,
		RateLimit:     limiter,
		EnableMetrics: true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpserver.New(cfg.Server.Addr, a.Router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting coin ledger", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	for _, job := range background {
		g.Go(func() error { return job(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		if async != nil {
			async.Wait()
		}
		return nil
	})

	return g.Wait()
}

//go:build integration

package coinledger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"coinledger/internal/app"
	jwttoken "coinledger/internal/jwt_token"
	ledgerstore "coinledger/internal/ledger/store"
	"coinledger/internal/platform/config"
	"coinledger/internal/platform/kafka"
	"coinledger/internal/platform/postgres"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/audit/outbox"
	"coinledger/pkg/requestcontext"
	"coinledger/pkg/testutil/containers"
)

func TestOutboxRelayPublishesAuditRecords(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	broker := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, postgres.Migrate(ctx, pg.DB))

	kcfg := config.KafkaConfig{
		Brokers:           []string{broker.Broker},
		AuditTopic:        "coinledger.audit.test",
		ClientID:          "coinledger-test",
		Partitions:        1,
		ReplicationFactor: 1,
	}
	producer, err := kafka.NewProducer(kcfg)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, producer.EnsureTopic(ctx, kcfg.Partitions, kcfg.ReplicationFactor))
	require.NoError(t, producer.Health(ctx))

	stores := app.PostgresStores(pg.DB, 5*time.Second)
	a, err := app.New(stores, app.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService("integration", "coinledger")),
	})
	require.NoError(t, err)

	actorCtx := requestcontext.WithActor(ctx, id.UserID(uuid.New()), "admin")
	require.NoError(t, ledgerstore.SeedDemo(actorCtx, stores.Ledger, time.Now()))
	agent := ledgerstore.SeedAgentID("AGT-LAG-001")
	_, err = a.Ledger.Mint(actorCtx, agent, 10, "relay")
	require.NoError(t, err)

	relay := outbox.NewRelay(stores.Audit, stores.Runner, producer, outbox.WithBatchSize(10))
	published, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	again, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again, "published entries must not be claimed twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(kcfg.AuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	var record audit.Record
	require.NoError(t, json.Unmarshal(records[0].Value, &record))
	assert.Equal(t, audit.OpCoinMint, record.Operation)
	assert.Equal(t, agent.String(), record.TargetID)
	assert.True(t, audit.Verify(record))
}

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

	"coinledger/internal/app"
	bulkmodels "coinledger/internal/bulk/models"
	jwttoken "coinledger/internal/jwt_token"
	ledgerstore "coinledger/internal/ledger/store"
	"coinledger/internal/notification"
	"coinledger/internal/platform/config"
	"coinledger/internal/platform/redis"
	id "coinledger/pkg/domain"
	"coinledger/pkg/requestcontext"
	"coinledger/pkg/testutil/containers"
)

func TestProcessedBulkDonationNotifiesSponsor(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := redis.New(ctx, config.RedisConfig{
		URL:         rc.URL,
		PoolSize:    4,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Health(ctx))

	sub := rc.Client.Subscribe(ctx, notification.DefaultChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	async := notification.NewAsync(notification.NewRedis(client, notification.DefaultChannel), notification.WithLogger(logger))
	stores := app.MemoryStores()
	a, err := app.New(stores, app.Options{
		Logger:    logger,
		Validator: jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService("integration", "coinledger")),
		Notifier:  async,
	})
	require.NoError(t, err)

	council := id.UserID(uuid.New())
	actorCtx := requestcontext.WithActor(ctx, council, "csc_council")
	require.NoError(t, ledgerstore.SeedDemo(actorCtx, stores.Ledger, time.Now()))
	sponsor := ledgerstore.SeedUserID("corporate-sponsor")

	b, err := a.Bulk.Create(actorCtx, council, bulkmodels.CreateRequest{
		SponsorID:        sponsor,
		TotalAmount:      90,
		RecipientCount:   2,
		DistributionType: bulkmodels.DistributionEqual,
	})
	require.NoError(t, err)
	_, err = a.Bulk.Process(actorCtx, council, b.ID)
	require.NoError(t, err)
	async.Wait()

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n notification.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	assert.Equal(t, notification.KindBulkDonationProcessed, n.Kind)
	assert.Equal(t, sponsor.String(), n.RecipientID)
}

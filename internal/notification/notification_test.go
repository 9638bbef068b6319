package notification_test

//go:generate mockgen -source=notification.go -destination=mocks/mocks.go -package=mocks Notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"coinledger/internal/notification"
	"coinledger/internal/notification/mocks"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisNotifier(t *testing.T) {
	t.Run("publishes json on the channel", func(t *testing.T) {
		pub := &fakePublisher{}
		n := notification.NewRedis(pub, "")

		err := n.Notify(context.Background(), notification.Notification{
			RecipientID: "agent-1",
			Kind:        notification.KindPurchaseApproved,
			Title:       "Coin Purchase Approved",
			Data:        map[string]any{"quantity": 250},
		})
		require.NoError(t, err)
		assert.Equal(t, notification.DefaultChannel, pub.channel)

		var decoded notification.Notification
		require.NoError(t, json.Unmarshal(pub.payload, &decoded))
		assert.Equal(t, notification.KindPurchaseApproved, decoded.Kind)
		assert.Equal(t, "agent-1", decoded.RecipientID)
	})

	t.Run("surfaces publish errors", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("connection refused")}
		err := notification.NewRedis(pub, "custom").Notify(context.Background(), notification.Notification{})
		require.Error(t, err)
		assert.Equal(t, "custom", pub.channel)
	})
}

func TestAsync(t *testing.T) {
	t.Run("delivers after the caller's context is cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockNotifier(ctrl)
		delivered := make(chan struct{})
		next.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ notification.Notification) error {
			defer close(delivered)
			assert.NoError(t, ctx.Err())
			return nil
		})

		async := notification.NewAsync(next)
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, async.Notify(ctx, notification.Notification{Kind: notification.KindPurchaseRejected}))
		cancel()

		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("notification was not delivered")
		}
		async.Wait()
	})

	t.Run("failures are logged and swallowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockNotifier(ctrl)
		next.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		var buf bytes.Buffer
		async := notification.NewAsync(next, notification.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
		require.NoError(t, async.Notify(context.Background(), notification.Notification{RecipientID: "agent-9"}))
		async.Wait()

		assert.Contains(t, buf.String(), "notification delivery failed")
		assert.Contains(t, buf.String(), "agent-9")
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockNotifier(ctrl)
		started := make(chan struct{})
		release := make(chan struct{})
		first := next.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, notification.Notification) error {
			close(started)
			<-release
			return nil
		})
		next.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).After(first)

		var buf bytes.Buffer
		async := notification.NewAsync(next,
			notification.WithBuffer(1),
			notification.WithWorkers(1),
			notification.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
		)
		require.NoError(t, async.Notify(context.Background(), notification.Notification{RecipientID: "agent-1"}))
		<-started
		require.NoError(t, async.Notify(context.Background(), notification.Notification{RecipientID: "agent-2"}))
		require.NoError(t, async.Notify(context.Background(), notification.Notification{RecipientID: "agent-3"}))

		assert.Equal(t, int64(1), async.Dropped())
		assert.Contains(t, buf.String(), "notification dropped")
		assert.Contains(t, buf.String(), "agent-3")

		close(release)
		async.Wait()
	})

	t.Run("notifications after wait are dropped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockNotifier(ctrl)

		async := notification.NewAsync(next)
		async.Wait()
		require.NoError(t, async.Notify(context.Background(), notification.Notification{}))
		assert.Equal(t, int64(1), async.Dropped())
		async.Wait()
	})

	t.Run("noop accepts everything", func(t *testing.T) {
		assert.NoError(t, notification.Noop{}.Notify(context.Background(), notification.Notification{}))
	})
}

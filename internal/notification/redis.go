package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel downstream delivery workers subscribe to.
const DefaultChannel = "coin-ledger.notifications"

// Publisher is the subset of the go-redis client used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes notifications as JSON on a pub/sub channel.
type Redis struct {
	client  Publisher
	channel string
}

func NewRedis(client Publisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

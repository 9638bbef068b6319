// Package redis opens the shared go-redis client used for notifications and
// rate limiting.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"coinledger/internal/platform/config"
	"coinledger/pkg/platform/sentinel"
)

// Client embeds the go-redis client so callers can use it as redis.Cmdable.
type Client struct {
	*redis.Client
}

// New returns nil, nil when no URL is configured. Otherwise the connection
// is verified before returning, bounded by the dial timeout.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := &Client{Client: redis.NewClient(opts)}

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Health(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Health pings the server. Failures wrap sentinel.ErrUnavailable.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"coinledger/internal/ratelimit/models"
)

// Redis implements the sliding window on a sorted set per key, scored by
// request time in microseconds, so every instance shares one quota. The
// count and the insert are separate round trips, so concurrent callers can
// overshoot the limit by at most their number.
type Redis struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error) {
	now := s.now()
	cutoff := now.Add(-limit.Window).UnixMicro()
	member := strconv.FormatInt(now.UnixMicro(), 10) + ":" + uuid.NewString()

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		count = p.ZCard(ctx, key)
		oldest = p.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return models.Result{}, fmt.Errorf("read window %s: %w", key, err)
	}

	resetAt := now.Add(limit.Window)
	if z := oldest.Val(); len(z) > 0 {
		resetAt = time.UnixMicro(int64(z[0].Score)).Add(limit.Window)
	}

	used := int(count.Val())
	if used >= limit.Requests {
		return models.Result{Allowed: false, Limit: limit.Requests, ResetAt: resetAt}, nil
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		p.PExpire(ctx, key, limit.Window)
		return nil
	})
	if err != nil {
		return models.Result{}, fmt.Errorf("record request %s: %w", key, err)
	}
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - used - 1,
		ResetAt:   resetAt,
	}, nil
}

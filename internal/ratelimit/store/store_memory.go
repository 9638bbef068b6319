package store

import (
	"context"
	"sync"
	"time"

	"coinledger/internal/ratelimit/models"
)

// InMemory keeps one sliding window of request timestamps per key. It is
// per process; multi-instance deployments use Redis.
type InMemory struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{buckets: make(map[string][]time.Time), now: time.Now}
}

func (s *InMemory) Allow(_ context.Context, key string, limit models.Limit) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	window := evict(s.buckets[key], now.Add(-limit.Window))

	if len(window) >= limit.Requests {
		s.buckets[key] = window
		return models.Result{
			Allowed: false,
			Limit:   limit.Requests,
			ResetAt: window[0].Add(limit.Window),
		}, nil
	}

	window = append(window, now)
	s.buckets[key] = window
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(window),
		ResetAt:   window[0].Add(limit.Window),
	}, nil
}

// evict drops timestamps at or before cutoff. Timestamps are ascending.
func evict(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"coinledger/internal/ratelimit/metrics"
	"coinledger/internal/ratelimit/models"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/requestcontext"
)

type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error)
}

type Middleware struct {
	store    Store
	limits   map[models.Class]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through (local runs, load tests).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(store Store, limits map[models.Class]models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces the class quota per authenticated actor, falling back to
// the client IP. A class without a configured limit is not limited. Store
// failures let the request through.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := m.limits[class]
			if m.disabled || !ok || limit.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			caller := requestcontext.ClientIP(ctx)
			if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
				caller = actor.String()
			}

			result, err := m.store.Allow(ctx, models.Key(class, caller), limit)
			if err != nil {
				m.metrics.IncrementErrors()
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", string(class),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				m.metrics.IncrementRejected(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"caller", caller,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

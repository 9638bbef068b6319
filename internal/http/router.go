// Package httpapi assembles the HTTP surface: shared middleware, role groups
// and the operational endpoints.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinledger/internal/admin"
	auditapi "coinledger/internal/audit"
	bulkhandler "coinledger/internal/bulk/handler"
	ledgerhandler "coinledger/internal/ledger/handler"
	"coinledger/internal/platform/metrics"
	purchasehandler "coinledger/internal/purchase/handler"
	ratelimit "coinledger/internal/ratelimit/middleware"
	ratelimitmodels "coinledger/internal/ratelimit/models"
	wallethandler "coinledger/internal/wallet/handler"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/platform/middleware/auth"
	"coinledger/pkg/platform/middleware/metadata"
	"coinledger/pkg/platform/middleware/request"
	"coinledger/pkg/platform/middleware/requesttime"
	"coinledger/pkg/platform/sentinel"
	"coinledger/pkg/requestcontext"
)

const requestTimeout = 30 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Validator auth.JWTValidator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Health    map[string]HealthCheck
	// RateLimit is optional; nil leaves every group unlimited.
	RateLimit *ratelimit.Middleware

	Ledger    *ledgerhandler.Handler
	Purchases *purchasehandler.Handler
	Bulk      *bulkhandler.Handler
	Admin     *admin.Handler
	Audit     *auditapi.Handler
	Wallets   *wallethandler.Handler
}

// NewRouter mounts every route group behind bearer auth and its role check.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Recoverer)
	r.Use(instrument(d.Metrics, d.Logger))

	r.Get("/healthz", health(d.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(auth.RequireAuth(d.Validator, d.Logger))

		r.Route("/admin/coins", func(r chi.Router) {
			r.Use(auth.RequireRole(d.Logger, auth.RoleAdmin, auth.RoleCSCCouncil))
			limit(r, d.RateLimit, ratelimitmodels.ClassCoinOps)
			d.Ledger.RegisterCoinRoutes(r)
			d.Purchases.Register(r)
			d.Admin.RegisterStatsRoutes(r)
			d.Wallets.Register(r)
		})
		r.Route("/admin/god-mode", func(r chi.Router) {
			r.Use(auth.RequireRole(d.Logger, auth.RoleCSCCouncil))
			limit(r, d.RateLimit, ratelimitmodels.ClassGodMode)
			d.Ledger.RegisterGodModeRoutes(r)
			d.Admin.RegisterGodModeRoutes(r)
		})
		r.Route("/admin/audit", func(r chi.Router) {
			r.Use(auth.RequireRole(d.Logger, auth.RoleAdmin, auth.RoleCSCCouncil))
			d.Audit.Register(r)
		})
		r.Route("/corporate", func(r chi.Router) {
			r.Use(auth.RequireRole(d.Logger, auth.RoleAdmin, auth.RoleCSCCouncil, auth.RoleCorporate))
			limit(r, d.RateLimit, ratelimitmodels.ClassCorporate)
			d.Bulk.Register(r)
		})
	})
	return r
}

// instrument records per-route metrics and an access log line. The route
// label is the chi pattern, so ids never become label values.
func instrument(m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			if m != nil {
				m.ObserveRequest(r.Method, route, strconv.Itoa(status), elapsed.Seconds())
			}
			if logger != nil {
				logger.DebugContext(r.Context(), "http request",
					"method", r.Method,
					"route", route,
					"status", status,
					"duration_ms", elapsed.Milliseconds(),
					"request_id", requestcontext.RequestID(r.Context()),
				)
			}
		})
	}
}

func limit(r chi.Router, m *ratelimit.Middleware, class ratelimitmodels.Class) {
	if m != nil {
		r.Use(m.Limit(class))
	}
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				state := "error"
				if errors.Is(err, sentinel.ErrUnavailable) {
					state = "unavailable"
				}
				results[name] = state + ": " + err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       http.StatusText(status),
			"dependencies": results,
		})
	}
}

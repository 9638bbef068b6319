package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/requestcontext"
)

// Operations is what the handler needs from Service.
type Operations interface {
	CoinStats(ctx context.Context) (*CoinStats, error)
	ForceDelete(ctx context.Context, actorID id.UserID, kind EntityKind, recordID uuid.UUID, reason string) (*DeletedRecord, error)
}

type Handler struct {
	service Operations
	logger  *slog.Logger
}

func NewHandler(service Operations, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterStatsRoutes(r chi.Router) {
	r.Get("/stats", h.HandleCoinStats)
}

func (h *Handler) RegisterGodModeRoutes(r chi.Router) {
	r.Delete("/records/{kind}/{recordID}", h.HandleForceDelete)
}

type ForceDeleteRequest struct {
	Reason string `json:"reason"`
}

func (r *ForceDeleteRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *ForceDeleteRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.NewWithReason(dErrors.CodeValidation, ReasonDeleteReason, "reason is required")
	}
	return nil
}

func (h *Handler) HandleCoinStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CoinStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load coin stats",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleForceDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	kind, err := ParseEntityKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid record id"))
		return
	}
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ForceDeleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	deleted, err := h.service.ForceDelete(ctx, actor, kind, recordID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "force delete failed",
			"kind", string(kind),
			"record_id", recordID.String(),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deleted)
}

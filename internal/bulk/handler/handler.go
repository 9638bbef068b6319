package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinledger/internal/bulk/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/platform/middleware/auth"
	"coinledger/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, actorID id.UserID, req models.CreateRequest) (*models.BulkDonation, error)
	Process(ctx context.Context, actorID id.UserID, bulkID id.BulkDonationID) (*models.Detail, error)
	Get(ctx context.Context, bulkID id.BulkDonationID) (*models.Detail, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/bulk-donations", h.HandleCreate)
	r.Get("/bulk-donations/{bulkDonationID}", h.HandleGet)
	r.Post("/bulk-donations/{bulkDonationID}/process", h.HandleProcess)
}

// HandleCreate records a pending bulk donation. Corporate callers always
// sponsor their own donations; admins may name another sponsor.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sponsor := req.sponsor
	if sponsor.IsNil() {
		sponsor = actor
	}
	if requestcontext.ActorRole(ctx) == auth.RoleCorporate && sponsor != actor {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "corporate accounts can only sponsor their own donations"))
		return
	}

	b, err := h.service.Create(ctx, actor, models.CreateRequest{
		SponsorID:        sponsor,
		TotalAmount:      req.TotalAmount,
		RecipientCount:   req.RecipientCount,
		DistributionType: models.DistributionType(req.DistributionType),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "bulk donation create failed",
			"sponsor_id", sponsor.String(),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	bulkID, err := id.ParseBulkDonationID(chi.URLParam(r, "bulkDonationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), bulkID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.canView(r.Context(), detail.SponsorID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "bulk donation not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bulkID, err := id.ParseBulkDonationID(chi.URLParam(r, "bulkDonationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if requestcontext.ActorRole(ctx) == auth.RoleCorporate {
		current, err := h.service.Get(ctx, bulkID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if current.SponsorID != actor {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "bulk donation not found"))
			return
		}
	}

	detail, err := h.service.Process(ctx, actor, bulkID)
	if err != nil {
		h.logger.WarnContext(ctx, "bulk donation processing failed",
			"bulk_donation_id", bulkID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

// canView hides other sponsors' donations from corporate callers.
func (h *Handler) canView(ctx context.Context, sponsor id.UserID) bool {
	if requestcontext.ActorRole(ctx) != auth.RoleCorporate {
		return true
	}
	return requestcontext.ActorID(ctx) == sponsor
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinledger/internal/purchase/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/requestcontext"
)

type Service interface {
	Approve(ctx context.Context, purchaseID id.PurchaseID, approverID id.UserID, notes string) (*models.ApprovalResult, error)
	Reject(ctx context.Context, purchaseID id.PurchaseID, approverID id.UserID, reason string) (*models.Purchase, error)
	ListPending(ctx context.Context, limit, offset int) (*models.Page, error)
	List(ctx context.Context, filter models.ListFilter) (*models.Page, error)
	Get(ctx context.Context, purchaseID id.PurchaseID) (*models.Purchase, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts purchase review routes. Callers apply auth and role
// middleware to r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/purchases/pending", h.HandleListPending)
	r.Get("/purchases", h.HandleList)
	r.Get("/purchases/{purchaseID}", h.HandleGet)
	r.Post("/purchases/{purchaseID}/approve", h.HandleApprove)
	r.Post("/purchases/{purchaseID}/reject", h.HandleReject)
}

func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListPending(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := id.ParsePurchaseID(chi.URLParam(r, "purchaseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), purchaseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	purchaseID, approver, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := decodeOptional[ApproveRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Approve(ctx, purchaseID, approver, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "purchase approval failed",
			"purchase_id", purchaseID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	purchaseID, approver, ok := h.target(w, r)
	if !ok {
		return
	}
	req, ok := decodeOptional[RejectRequest](w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.Reject(ctx, purchaseID, approver, req.RejectionReason)
	if err != nil {
		h.logger.WarnContext(ctx, "purchase rejection failed",
			"purchase_id", purchaseID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (id.PurchaseID, id.UserID, bool) {
	purchaseID, err := id.ParsePurchaseID(chi.URLParam(r, "purchaseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PurchaseID{}, id.UserID{}, false
	}
	approver := requestcontext.ActorID(r.Context())
	if approver.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.PurchaseID{}, id.UserID{}, false
	}
	return purchaseID, approver, true
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional[T any, PT interface {
	*T
	httputil.Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return new(T), true
	}
	ctx := r.Context()
	return httputil.DecodeAndPrepare[T, PT](w, r, logger, ctx, requestcontext.RequestID(ctx))
}

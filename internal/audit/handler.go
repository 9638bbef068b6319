package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
)

type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	ListByTarget(ctx context.Context, targetID string) ([]Entry, error)
}

type Handler struct {
	service Lister
}

func NewHandler(service Lister) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.HandleListRecent)
	r.Get("/targets/{targetID}", h.HandleListByTarget)
}

type listResponse struct {
	Records []Entry `json:"records"`
	Count   int     `json:"count"`
}

func (h *Handler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Records: entries, Count: len(entries)})
}

func (h *Handler) HandleListByTarget(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListByTarget(r.Context(), chi.URLParam(r, "targetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Records: entries, Count: len(entries)})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coinledger/internal/wallet/models"
	id "coinledger/pkg/domain"
	dErrors "coinledger/pkg/domain-errors"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/requestcontext"
)

type Service interface {
	ListActive(ctx context.Context) ([]models.CryptoWallet, error)
	Create(ctx context.Context, actorID id.UserID, req models.CreateRequest) (*models.CryptoWallet, error)
	Deactivate(ctx context.Context, actorID id.UserID, walletID id.CryptoWalletID) (*models.CryptoWallet, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the payment wallet routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/wallets", h.HandleList)
	r.Post("/wallets", h.HandleCreate)
	r.Delete("/wallets/{walletID}", h.HandleDeactivate)
}

type listResponse struct {
	Wallets []models.CryptoWallet `json:"wallets"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.service.ListActive(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Wallets: wallets})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	wallet, err := h.service.Create(ctx, actor, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "crypto wallet create failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wallet)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walletID, err := id.ParseCryptoWalletID(chi.URLParam(r, "walletID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	wallet, err := h.service.Deactivate(ctx, actor, walletID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coinledger/internal/ledger/models"
	id "coinledger/pkg/domain"
	"coinledger/pkg/platform/httputil"
	"coinledger/pkg/requestcontext"
)

// Service is the coin-operation surface the handler drives.
type Service interface {
	Mint(ctx context.Context, agentID id.AgentID, amount int64, reason string) (*models.MintResult, error)
	Burn(ctx context.Context, agentID id.AgentID, amount int64, reason string) (*models.MintResult, error)
	Transfer(ctx context.Context, from, to id.AgentID, amount int64, reason string) (*models.TransferResult, error)
	OverrideUserBalance(ctx context.Context, userID id.UserID, amount decimal.Decimal, balanceType models.BalanceType, reason string) (*models.OverrideResult, error)
	GetAgent(ctx context.Context, agentID id.AgentID) (*models.Agent, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.UserAccount, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterCoinRoutes mounts agent coin operations. Callers apply auth and
// role middleware to r.
func (h *Handler) RegisterCoinRoutes(r chi.Router) {
	r.Post("/agents/{agentID}/mint", h.HandleMint)
	r.Post("/agents/{agentID}/burn", h.HandleBurn)
	r.Get("/agents/{agentID}", h.HandleGetAgent)
	r.Post("/transfer", h.HandleTransfer)
}

// RegisterGodModeRoutes mounts user balance overrides.
func (h *Handler) RegisterGodModeRoutes(r chi.Router) {
	r.Patch("/users/{userID}/balance", h.HandleOverrideBalance)
	r.Get("/users/{userID}", h.HandleGetUser)
}

func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	h.handleAgentAmount(w, r, "mint", h.service.Mint)
}

func (h *Handler) HandleBurn(w http.ResponseWriter, r *http.Request) {
	h.handleAgentAmount(w, r, "burn", h.service.Burn)
}

func (h *Handler) handleAgentAmount(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, id.AgentID, int64, string) (*models.MintResult, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	agentID, err := id.ParseAgentID(chi.URLParam(r, "agentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := fn(ctx, agentID, req.Amount, req.Reason)
	if err != nil {
		h.logFailure(ctx, op, err, "agent_id", agentID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Transfer(ctx, req.from, req.to, req.Amount, req.Reason)
	if err != nil {
		h.logFailure(ctx, "transfer", err,
			"from_agent_id", req.FromAgentID,
			"to_agent_id", req.ToAgentID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleOverrideBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.OverrideUserBalance(ctx, userID, *req.Amount, models.BalanceType(req.BalanceType), req.Reason)
	if err != nil {
		h.logFailure(ctx, "override_balance", err, "user_id", userID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := id.ParseAgentID(chi.URLParam(r, "agentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	agent, err := h.service.GetAgent(r.Context(), agentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agent)
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) logFailure(ctx context.Context, op string, err error, attrs ...any) {
	args := append([]any{
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	h.logger.WarnContext(ctx, "ledger operation failed", args...)
}

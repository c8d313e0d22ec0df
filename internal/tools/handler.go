package tools

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockpile-dev/stockpile/internal/observability"
	"github.com/stockpile-dev/stockpile/internal/platform/httpx"
)

// Handler wires the tool protocol endpoints.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	guard    *Guard
	metrics  *observability.Metrics
}

// NewHandler constructs the tools handler. metrics may be nil.
func NewHandler(logger *slog.Logger, registry *Registry, guard *Guard, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, registry: registry, guard: guard, metrics: metrics}
}

// MountRoutes registers the discovery and dispatch endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/v1/tools", h.handleList)
	r.Post("/v1/tools/call", h.handleCall)
}

type callRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type callResponse struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result any    `json:"result"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"tools": h.registry.List()})
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "body must be JSON with name and arguments")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "name is required")
		return
	}

	callID := uuid.NewString()
	tool, known := h.registry.Get(req.Name)
	if known && tool.Mutating {
		if err := h.guard.Authorize(r); err != nil {
			h.logger.Warn("tool call rejected",
				slog.String("call_id", callID),
				slog.String("tool", req.Name),
				slog.Any("error", err))
			h.metrics.ObserveToolCall(req.Name, "denied", 0)
			respondError(w, err)
			return
		}
	}

	ctx := r.Context()
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		ctx = WithActor(ctx, actor)
	}

	start := time.Now()
	result, err := h.registry.Call(ctx, req.Name, req.Arguments)
	took := time.Since(start)
	h.metrics.ObserveToolCall(req.Name, outcomeFor(err), took)
	if err != nil {
		h.logger.Warn("tool call failed",
			slog.String("call_id", callID),
			slog.String("tool", req.Name),
			slog.String("outcome", outcomeFor(err)),
			slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.Info("tool call",
		slog.String("call_id", callID),
		slog.String("tool", req.Name),
		slog.Duration("took", took))
	httpx.JSON(w, http.StatusOK, callResponse{CallID: callID, Name: req.Name, Result: result})
}

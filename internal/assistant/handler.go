package assistant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// ChannelHTTP tags conversation log events that arrived over the REST API.
const ChannelHTTP = "chat_http"

type chatRequest struct {
	Message string `json:"message"`
}

type historyResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type failedResponse struct {
	Error       string             `json:"error"`
	UserMessage domain.ChatMessage `json:"user_message"`
}

// Handler exposes the assistant over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates an assistant handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers assistant routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/history", h.HandleHistory)
		r.Delete("/history", h.HandleClear)
		r.Post("/retry/{id}", h.HandleRetry)
	})
}

// HandleChat handles POST /api/assistant/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("Assistant chat request",
		"user_id", userID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	ex, err := h.svc.Send(r.Context(), Turn{
		UserID:    userID,
		SessionID: identity.SessionIDFromContext(r.Context()),
		Channel:   ChannelHTTP,
		Text:      req.Message,
	})
	h.respond(w, ex, err)
}

// HandleRetry handles POST /api/assistant/retry/{id}.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	ex, err := h.svc.Retry(r.Context(), Turn{
		UserID:    userID,
		SessionID: identity.SessionIDFromContext(r.Context()),
		Channel:   ChannelHTTP,
	}, chi.URLParam(r, "id"))
	h.respond(w, ex, err)
}

// HandleHistory handles GET /api/assistant/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	msgs, err := h.svc.History(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load chat history", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}

// HandleClear handles DELETE /api/assistant/history.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	msgs, err := h.svc.Clear(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to clear chat history", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}

func (h *Handler) respond(w http.ResponseWriter, ex *Exchange, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ex)
	case errors.Is(err, ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrMessageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case ex != nil:
		// The message was stored as failed and can be retried.
		writeJSON(w, http.StatusBadGateway, failedResponse{Error: "assistant unavailable", UserMessage: ex.UserMessage})
	default:
		slog.Error("Assistant request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

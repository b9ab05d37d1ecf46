package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/smartkissan/internal/assistant"
	"github.com/ashureev/smartkissan/internal/identity"
)

// Channel tags conversation log events that arrived over the chat socket.
const Channel = "chat_ws"

const writeTimeout = 10 * time.Second

// Sender runs one chat turn. *assistant.Service implements it.
type Sender interface {
	Send(ctx context.Context, turn assistant.Turn) (*assistant.Exchange, error)
}

// inbound is a browser frame. Frames without a type carry a chat message.
type inbound struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type outbound struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Response string `json:"response,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler upgrades browser connections on /ws/chat.
type Handler struct {
	svc           Sender
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a chat WebSocket handler.
func NewHandler(svc Sender, sm *SessionManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{svc: svc, sm: sm, allowedOrigin: allowedOrigin, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	slog.Info("Chat WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept chat WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close chat websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, userID, sessionID)
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("Chat WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop answers frames in arrival order until the peer goes away.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Chat WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("Chat WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.write(ctx, ws, outbound{Error: "invalid frame"})
			continue
		}

		if msg.Type == "ping" {
			h.write(ctx, ws, outbound{ID: msg.ID, Type: "pong"})
			continue
		}

		ex, err := h.svc.Send(ctx, assistant.Turn{
			UserID:    userID,
			SessionID: sessionID,
			Channel:   Channel,
			Text:      msg.Message,
		})
		h.write(ctx, ws, reply(msg.ID, ex, err))
	}
}

func reply(id string, ex *assistant.Exchange, err error) outbound {
	switch {
	case err == nil && ex != nil && ex.Reply != nil:
		return outbound{
			ID:       id,
			Response: ex.Reply.Text,
			Category: string(ex.Reply.Type),
			Source:   string(ex.Source),
		}
	case errors.Is(err, assistant.ErrEmptyMessage), errors.Is(err, assistant.ErrRateLimited):
		return outbound{ID: id, Error: err.Error()}
	default:
		if err != nil {
			slog.Warn("Chat WebSocket turn failed", "error", err)
		}
		return outbound{ID: id, Error: "assistant unavailable"}
	}
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, v outbound) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode chat frame", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("Chat WebSocket write error", "error", err)
	}
}

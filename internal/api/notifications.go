package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/smartkissan/internal/notification"
)

// NotificationHandler serves the notification center.
type NotificationHandler struct {
	svc *notification.Service
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// RegisterRoutes registers notification routes.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
	})
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list notifications", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	JSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"unread_count":  unread,
	})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	n, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to count notifications", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	JSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	err := h.svc.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, notification.ErrNotFound) {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to mark notification read", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to mark notifications read", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

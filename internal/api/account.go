package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
)

// AccountHandler serves preferences and the farmer profile.
type AccountHandler struct {
	*Handler
}

// NewAccountHandler creates an account handler.
func NewAccountHandler(base *Handler) *AccountHandler {
	return &AccountHandler{Handler: base}
}

// RegisterRoutes registers preference and profile routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/preferences", h.GetPreferences)
	r.Put("/api/preferences", h.UpdatePreferences)

	r.Route("/api/profile", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
	})
}

// loadPreferences returns the stored preferences or the defaults.
func (h *Handler) loadPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	prefs, err := h.repo.GetPreferences(ctx, userID)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if prefs == nil {
		return domain.DefaultPreferences(), nil
	}
	return *prefs, nil
}

// GetMe returns the current user's identity and display name.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"user_id":          user.UserID,
		"username":         user.Username,
		"display_name":     user.DisplayName(),
		"is_authenticated": user.Profile.IsAuthenticated,
		"session_id":       identity.SessionIDFromContext(r.Context()),
	})
}

// GetPreferences handles GET /api/preferences.
func (h *AccountHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prefs, err := h.loadPreferences(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load preferences", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	JSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/preferences. Absent fields keep their value.
func (h *AccountHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch domain.PreferencesPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Language != nil && !patch.Language.IsSupported() {
		Error(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q", *patch.Language))
		return
	}
	if loc := patch.DefaultLocation; loc != nil && (loc[0] < -90 || loc[0] > 90 || loc[1] < -180 || loc[1] > 180) {
		Error(w, http.StatusBadRequest, "default_location is out of range")
		return
	}

	prefs, err := h.loadPreferences(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load preferences", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	prefs.Apply(patch)

	if err := h.repo.UpsertPreferences(r.Context(), userID, prefs); err != nil {
		slog.Error("Failed to save preferences", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	JSON(w, http.StatusOK, prefs)
}

// GetProfile handles GET /api/profile.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}
	JSON(w, http.StatusOK, user.Profile)
}

// UpdateProfile handles PUT /api/profile.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var profile domain.Profile
	if !decodeBody(w, r, &profile) {
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}
	if !user.Profile.IsAuthenticated {
		Error(w, http.StatusForbidden, "login required")
		return
	}
	profile.IsAuthenticated = true

	h.saveProfile(w, r, userID, profile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/profile/login. Any non-empty credentials sign in
// as the demo farmer.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	slog.Info("Farmer signed in", "user_id", userID)
	h.saveProfile(w, r, userID, domain.DemoProfile(req.Email))
}

// Register handles POST /api/profile/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var profile domain.Profile
	if !decodeBody(w, r, &profile) {
		return
	}
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.Name == "" || profile.Email == "" {
		Error(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if profile.FarmSize < 0 {
		Error(w, http.StatusBadRequest, "farm_size cannot be negative")
		return
	}
	profile.IsAuthenticated = true

	slog.Info("Farmer registered", "user_id", userID)
	h.saveProfile(w, r, userID, profile)
}

// Logout handles POST /api/profile/logout. Preferences are kept.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.saveProfile(w, r, userID, domain.Profile{})
}

func (h *AccountHandler) saveProfile(w http.ResponseWriter, r *http.Request, userID string, profile domain.Profile) {
	if err := h.repo.UpdateProfile(r.Context(), userID, profile); err != nil {
		slog.Error("Failed to save profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"profile":    profile,
		"updated_at": time.Now().UTC(),
	})
}

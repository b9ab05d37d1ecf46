package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/location"
)

// NetworkStatus reports and accepts the service's connectivity state.
// *connectivity.Monitor implements it.
type NetworkStatus interface {
	Status() domain.NetworkStatus
	SetReported(status domain.NetworkStatus)
}

// APIRegistry lists upstream integrations. *connectivity.Registry implements it.
type APIRegistry interface {
	List() []domain.ExternalAPIDescriptor
	Refresh(ctx context.Context)
}

// LocationResolver records geolocation fixes. *location.Service implements it.
type LocationResolver interface {
	LocationReader
	Resolve(ctx context.Context, userID string, fix location.Fix) (*domain.UserLocation, error)
}

// StatusHandler exposes connectivity and location state.
type StatusHandler struct {
	network   NetworkStatus
	apis      APIRegistry
	locations LocationResolver
}

// NewStatusHandler creates a status handler. apis may be nil.
func NewStatusHandler(network NetworkStatus, apis APIRegistry, locations LocationResolver) *StatusHandler {
	return &StatusHandler{network: network, apis: apis, locations: locations}
}

// RegisterRoutes registers status and location routes.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/status", func(r chi.Router) {
		r.Get("/", h.GetStatus)
		r.Post("/network", h.ReportNetwork)
		r.Get("/apis", h.ListAPIs)
		r.Post("/apis/refresh", h.RefreshAPIs)
	})
	r.Route("/api/location", func(r chi.Router) {
		r.Get("/", h.GetLocation)
		r.Post("/", h.ResolveLocation)
	})
}

func (h *StatusHandler) descriptors() []domain.ExternalAPIDescriptor {
	if h.apis == nil {
		return []domain.ExternalAPIDescriptor{}
	}
	return h.apis.List()
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"network": h.network.Status(),
		"apis":    h.descriptors(),
	})
}

type networkReport struct {
	Status domain.NetworkStatus `json:"status"`
}

// ReportNetwork handles POST /api/status/network with a browser online/offline event.
func (h *StatusHandler) ReportNetwork(w http.ResponseWriter, r *http.Request) {
	var body networkReport
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Status != domain.NetworkOnline && body.Status != domain.NetworkOffline {
		Error(w, http.StatusBadRequest, "status must be online or offline")
		return
	}
	h.network.SetReported(body.Status)
	JSON(w, http.StatusOK, map[string]any{"network": h.network.Status()})
}

// ListAPIs handles GET /api/status/apis.
func (h *StatusHandler) ListAPIs(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"apis": h.descriptors()})
}

// RefreshAPIs handles POST /api/status/apis/refresh.
func (h *StatusHandler) RefreshAPIs(w http.ResponseWriter, r *http.Request) {
	if h.apis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		h.apis.Refresh(ctx)
	}
	JSON(w, http.StatusOK, map[string]any{"apis": h.descriptors()})
}

// GetLocation handles GET /api/location.
func (h *StatusHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	loc, err := h.locations.Current(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load location", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load location")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"location": loc})
}

// ResolveLocation handles POST /api/location with a browser geolocation result.
func (h *StatusHandler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var fix location.Fix
	if !decodeBody(w, r, &fix) {
		return
	}

	loc, err := h.locations.Resolve(r.Context(), userID, fix)
	if errors.Is(err, location.ErrInvalidFix) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to resolve location", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to resolve location")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"location": loc})
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/dispatcher"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/identity"
)

// LocationReader returns a user's cached location.
type LocationReader interface {
	Current(ctx context.Context, userID string) (*domain.UserLocation, error)
}

// DashboardHandler serves the dashboard datasets through the dispatcher.
// Every route answers 200 with an envelope; fallbacks are flagged by source.
type DashboardHandler struct {
	*Handler
	disp      *dispatcher.Dispatcher
	locations LocationReader
}

// NewDashboardHandler creates a dashboard handler. locations may be nil.
func NewDashboardHandler(base *Handler, disp *dispatcher.Dispatcher, locations LocationReader) *DashboardHandler {
	return &DashboardHandler{Handler: base, disp: disp, locations: locations}
}

// RegisterRoutes registers dashboard routes.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/dashboard", func(r chi.Router) {
		r.Get("/crop-recommendations", h.CropRecommendations)
		r.Get("/yield-predictions", h.YieldPredictions)
		r.Get("/price-forecasts", h.PriceForecasts)
		r.Get("/weather", h.Weather)
		r.Get("/satellite-data", h.Satellite)
		r.Get("/field-health", h.FieldHealth)
		r.Get("/geocode/reverse", h.ReverseGeocode)
		r.Post("/chat", h.Chat)
	})
}

// CropRecommendations handles GET /api/dashboard/crop-recommendations.
func (h *DashboardHandler) CropRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	JSON(w, http.StatusOK, h.disp.CropRecommendations(r.Context(), dispatcher.CropParams{
		SoilType:    q.Get("soilType"),
		Location:    q.Get("location"),
		Temperature: queryFloat(r, "temperature"),
		Humidity:    queryFloat(r, "humidity"),
	}))
}

// YieldPredictions handles GET /api/dashboard/yield-predictions.
func (h *DashboardHandler) YieldPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	JSON(w, http.StatusOK, h.disp.YieldPredictions(r.Context(), dispatcher.YieldParams{
		Crop:     q.Get("crop"),
		Location: q.Get("location"),
	}))
}

// PriceForecasts handles GET /api/dashboard/price-forecasts.
func (h *DashboardHandler) PriceForecasts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	JSON(w, http.StatusOK, h.disp.PriceForecasts(r.Context(), dispatcher.PriceParams{
		Crop:   q.Get("crop"),
		Period: q.Get("period"),
	}))
}

// Weather handles GET /api/dashboard/weather. Without a place or coordinates
// the caller's preferred default location is used.
func (h *DashboardHandler) Weather(w http.ResponseWriter, r *http.Request) {
	p := dispatcher.WeatherParams{
		Location:  r.URL.Query().Get("location"),
		Latitude:  queryFloat(r, "lat"),
		Longitude: queryFloat(r, "lon"),
	}
	if p.Location == "" && (p.Latitude == nil || p.Longitude == nil) {
		lat, lon := h.defaultLocation(r)
		p.Latitude, p.Longitude = &lat, &lon
	}
	JSON(w, http.StatusOK, h.disp.Weather(r.Context(), p))
}

// Satellite handles GET /api/dashboard/satellite-data.
func (h *DashboardHandler) Satellite(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	JSON(w, http.StatusOK, h.disp.Satellite(r.Context(), dispatcher.SatelliteParams{
		Location: q.Get("location"),
		Date:     q.Get("date"),
	}))
}

// FieldHealth handles GET /api/dashboard/field-health.
func (h *DashboardHandler) FieldHealth(w http.ResponseWriter, r *http.Request) {
	lat, lon := h.defaultLocation(r)
	if v := queryFloat(r, "lat"); v != nil {
		lat = *v
	}
	if v := queryFloat(r, "lon"); v != nil {
		lon = *v
	}
	JSON(w, http.StatusOK, h.disp.FieldHealth(r.Context(), dispatcher.FieldParams{Latitude: lat, Longitude: lon}))
}

// ReverseGeocode handles GET /api/dashboard/geocode/reverse.
func (h *DashboardHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, lon := queryFloat(r, "lat"), queryFloat(r, "lon")
	if lat == nil || lon == nil {
		Error(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	JSON(w, http.StatusOK, h.disp.ReverseGeocode(r.Context(), *lat, *lon))
}

type dashboardChatRequest struct {
	Message  string          `json:"message"`
	Language domain.Language `json:"language,omitempty"`
}

// Chat handles POST /api/dashboard/chat, a one-shot question that is not
// added to the transcript.
func (h *DashboardHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body dashboardChatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	body.Message = strings.TrimSpace(body.Message)
	if body.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	req := chat.Request{Text: body.Message, Language: body.Language}
	prefs := h.preferences(r)
	if !req.Language.IsSupported() {
		req.Language = prefs.Language
	}
	if user, err := h.repo.GetUser(r.Context(), userID); err == nil && user != nil {
		req.Profile = user.Profile
	}
	if h.locations != nil {
		if loc, err := h.locations.Current(r.Context(), userID); err == nil && loc.Known() {
			req.Location = loc
		}
	}

	JSON(w, http.StatusOK, h.disp.Chat(r.Context(), req))
}

func (h *DashboardHandler) preferences(r *http.Request) domain.Preferences {
	prefs, err := h.loadPreferences(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		slog.Debug("Preferences unavailable", "error", err)
		return domain.DefaultPreferences()
	}
	return prefs
}

func (h *DashboardHandler) defaultLocation(r *http.Request) (float64, float64) {
	prefs := h.preferences(r)
	return prefs.DefaultLocation[0], prefs.DefaultLocation[1]
}

// queryFloat parses an optional float query parameter; malformed values are ignored.
func queryFloat(r *http.Request, key string) *float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

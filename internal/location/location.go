// Package location resolves browser geolocation fixes into cached,
// reverse-geocoded user locations.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/geocode"
	"github.com/ashureev/smartkissan/internal/store"
)

// ErrInvalidFix is returned for coordinates outside the valid range.
var ErrInvalidFix = errors.New("invalid coordinates")

// reuseRadiusKm is how far a new fix may drift before the cached place name
// is considered stale.
const reuseRadiusKm = 0.1

// Geocoder turns coordinates into a place. *geocode.Client implements it.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.Place, error)
}

// Fix is a geolocation result reported by the browser. A non-empty Error
// means the browser could not produce coordinates.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Error     string  `json:"error,omitempty"`
}

// Config tunes location caching.
type Config struct {
	Freshness     time.Duration
	LookupTimeout time.Duration
}

// Service resolves and caches user locations.
type Service struct {
	repo   store.Repository
	geo    Geocoder
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a location service. geo may be nil, in which case
// locations are stored without names.
func NewService(repo store.Repository, geo Geocoder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = 24 * time.Hour
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 15 * time.Second
	}
	return &Service{repo: repo, geo: geo, cfg: cfg, logger: logger, now: time.Now}
}

// Current returns the cached location of a user, or nil.
func (s *Service) Current(ctx context.Context, userID string) (*domain.UserLocation, error) {
	loc, err := s.repo.GetLocation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return loc, nil
}

// Resolve records a geolocation fix or failure and returns the location the
// dashboard should use.
func (s *Service) Resolve(ctx context.Context, userID string, fix Fix) (*domain.UserLocation, error) {
	cached, err := s.repo.GetLocation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}

	if fix.Error != "" {
		return s.recordFailure(ctx, userID, cached, fix.Error)
	}

	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return nil, ErrInvalidFix
	}

	now := s.now()
	if cached != nil && cached.Error == "" && cached.IsFresh(now, s.cfg.Freshness) &&
		cached.DistanceKm(fix.Latitude, fix.Longitude) <= reuseRadiusKm {
		return cached, nil
	}

	loc := domain.UserLocation{
		Latitude:    fix.Latitude,
		Longitude:   fix.Longitude,
		LastUpdated: now,
	}
	s.enrich(ctx, &loc)

	if err := s.repo.UpsertLocation(ctx, userID, loc); err != nil {
		return nil, fmt.Errorf("save location: %w", err)
	}
	return &loc, nil
}

// recordFailure keeps the last good coordinates, or the preferred default,
// and notes why the browser gave no fix.
func (s *Service) recordFailure(ctx context.Context, userID string, cached *domain.UserLocation, reason string) (*domain.UserLocation, error) {
	s.logger.Info("Geolocation unavailable", "user_id", userID, "reason", reason)

	var loc domain.UserLocation
	if cached != nil {
		loc = *cached
	} else {
		lat, lon := s.defaultCoordinates(ctx, userID)
		loc = domain.UserLocation{Latitude: lat, Longitude: lon, IsDefault: true, LastUpdated: s.now()}
	}
	loc.Error = reason

	if err := s.repo.UpsertLocation(ctx, userID, loc); err != nil {
		return nil, fmt.Errorf("save location: %w", err)
	}
	return &loc, nil
}

func (s *Service) defaultCoordinates(ctx context.Context, userID string) (float64, float64) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil || prefs == nil {
		return domain.DefaultLatitude, domain.DefaultLongitude
	}
	return prefs.DefaultLocation[0], prefs.DefaultLocation[1]
}

func (s *Service) enrich(ctx context.Context, loc *domain.UserLocation) {
	if s.geo == nil {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	place, err := s.geo.Reverse(lookupCtx, loc.Latitude, loc.Longitude)
	if err != nil {
		s.logger.Warn("Reverse geocoding failed", "operation", "resolve_location", "source", "geocoding", "error", err)
		return
	}
	loc.LocationName = place.Name()
	loc.Region = place.Region
	loc.Country = place.Country
	loc.CountryCode = place.CountryCode
}

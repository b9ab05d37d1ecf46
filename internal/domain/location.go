package domain

import (
	"math"
	"time"
)

// UserLocation is the last known position of a user, optionally enriched by
// reverse geocoding.
type UserLocation struct {
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name,omitempty"`
	Region       string    `json:"region,omitempty"`
	Country      string    `json:"country,omitempty"`
	CountryCode  string    `json:"country_code,omitempty"`
	Error        string    `json:"error,omitempty"`
	IsDefault    bool      `json:"is_default,omitempty"` // coordinates from preferences, no fix yet
	LastUpdated  time.Time `json:"last_updated"`
}

// Geolocation failure reasons reported by the browser.
const (
	LocationErrDenied      = "denied"
	LocationErrUnsupported = "unsupported"
	LocationErrTimeout     = "timeout"
	LocationErrUnavailable = "unavailable"
)

// IsFresh reports whether the location was updated within window of now.
func (l *UserLocation) IsFresh(now time.Time, window time.Duration) bool {
	if l == nil || l.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(l.LastUpdated) <= window
}

// Known reports whether the coordinates come from a real fix, even one that
// a later geolocation failure left in place.
func (l *UserLocation) Known() bool {
	return l != nil && !l.IsDefault
}

// HasName reports whether reverse geocoding produced a place name.
func (l *UserLocation) HasName() bool {
	return l != nil && l.LocationName != ""
}

// DistanceKm returns the great-circle distance to the given coordinates.
func (l *UserLocation) DistanceKm(lat, lon float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat - l.Latitude)
	dLon := rad(lon - l.Longitude)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(l.Latitude))*math.Cos(rad(lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

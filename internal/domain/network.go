package domain

import "time"

// NetworkStatus is the connectivity state of the service.
type NetworkStatus string

const (
	NetworkOnline  NetworkStatus = "online"
	NetworkOffline NetworkStatus = "offline"
)

// APICategory groups upstream integrations.
type APICategory string

const (
	CategoryWeather   APICategory = "weather"
	CategoryGeocoding APICategory = "geocoding"
	CategoryData      APICategory = "data"
	CategoryAssistant APICategory = "assistant"
)

// ExternalAPIDescriptor is the liveness record of one upstream integration.
type ExternalAPIDescriptor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	IsAvailable bool        `json:"is_available"`
	Category    APICategory `json:"category"`
	CheckedAt   time.Time   `json:"checked_at,omitzero"`
}

// Source records where a payload came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceMock      Source = "mock"
	SourceHeuristic Source = "heuristic"
	SourceSynthetic Source = "synthetic"
)

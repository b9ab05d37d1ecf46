package chat

import (
	"github.com/ashureev/smartkissan/internal/domain"
)

// Frame is an outbound message to the chat backend.
type Frame struct {
	ID      string       `json:"id"`
	Message string       `json:"message"`
	Context FrameContext `json:"context"`
}

// FrameContext is the situational context sent along with a prompt.
type FrameContext struct {
	Domain                string   `json:"domain"`
	Region                string   `json:"region"`
	LanguagePreference    string   `json:"language_preference"`
	ExpertiseLevel        string   `json:"expertise_level"`
	CropsOfInterest       []string `json:"crops_of_interest"`
	CurrentSeason         string   `json:"current_season"`
	IncludeLocalKnowledge bool     `json:"include_local_knowledge"`

	Weather      *domain.WeatherReport `json:"weather,omitempty"`
	Soil         *domain.SoilProfile   `json:"soil,omitempty"`
	RainfallMM   *float64              `json:"rainfall_mm,omitempty"`
	MarketPrices []domain.MarketPrice  `json:"market_prices,omitempty"`
}

// Inbound is a reply frame from the chat backend. Backends answer with
// either a response or a message field.
type Inbound struct {
	ID       string `json:"id"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Text returns the reply text, preferring Response.
func (in Inbound) Text() string {
	if in.Response != "" {
		return in.Response
	}
	return in.Message
}

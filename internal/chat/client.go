package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/smartkissan/internal/agronomy"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/weather"
)

// ErrNoReply is returned by Ask when the backend did not answer and synthetic
// fallback is disabled.
var ErrNoReply = errors.New("chat backend did not reply")

// Transport is the correlated connection the client sends frames over.
// *Channel implements it.
type Transport interface {
	State() State
	StartConnect() <-chan struct{}
	Send(ctx context.Context, frame Frame) (Inbound, error)
}

// WeatherSource fetches the weather snapshot attached to weather prompts.
type WeatherSource interface {
	Forecast(ctx context.Context, q weather.Query) (domain.WeatherReport, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	ConnectGrace      time.Duration
	SyntheticFallback bool
	ExpertiseLevel    string
}

// Request is one farmer question.
type Request struct {
	Text     string
	Language domain.Language
	Location *domain.UserLocation
	Profile  domain.Profile
}

// Reply is the assistant's answer to a Request.
type Reply struct {
	ID            string             `json:"id"`
	Text          string             `json:"text"`
	Category      Category           `json:"category"`
	Type          domain.MessageType `json:"type"`
	Source        domain.Source      `json:"source"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Client answers farmer questions through the chat backend, falling back to
// the offline responder when the backend is unavailable.
type Client struct {
	transport Transport
	responder *Responder
	weather   WeatherSource
	cfg       ClientConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient builds a client. transport and weatherSrc may be nil; a nil
// transport always answers synthetically.
func NewClient(transport Transport, responder *Responder, weatherSrc WeatherSource, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if responder == nil {
		responder = DefaultResponder()
	}
	if cfg.ConnectGrace <= 0 {
		cfg.ConnectGrace = time.Second
	}
	if cfg.ExpertiseLevel == "" {
		cfg.ExpertiseLevel = "beginner"
	}
	return &Client{
		transport: transport,
		responder: responder,
		weather:   weatherSrc,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Ask sends req to the backend and returns its reply. When the backend is not
// reachable within the connect grace period, fails, or times out, the reply
// comes from the responder instead. Ask only returns an error when synthetic
// fallback is disabled.
func (c *Client) Ask(ctx context.Context, req Request) (Reply, error) {
	cat := Classify(req.Text)

	if c.transport == nil {
		return c.fallback(req, cat, errors.New("no chat transport"))
	}
	if !c.awaitOpen(ctx) {
		return c.fallback(req, cat, ErrNotOpen)
	}

	frame := Frame{
		ID:      uuid.NewString(),
		Message: req.Text,
		Context: c.buildContext(ctx, req, cat),
	}
	in, err := c.transport.Send(ctx, frame)
	if err != nil {
		return c.fallback(req, cat, err)
	}
	text := strings.TrimSpace(in.Text())
	if text == "" {
		return c.fallback(req, cat, errors.New("empty reply"))
	}

	return Reply{
		ID:            uuid.NewString(),
		Text:          text,
		Category:      cat,
		Type:          cat.MessageType(),
		Source:        domain.SourceLive,
		CorrelationID: frame.ID,
		Timestamp:     c.now(),
	}, nil
}

// Synthetic answers req with the offline responder.
func (c *Client) Synthetic(req Request) Reply {
	cat := Classify(req.Text)
	return c.synthetic(req, cat)
}

func (c *Client) synthetic(req Request, cat Category) Reply {
	return Reply{
		ID:        uuid.NewString(),
		Text:      c.responder.Reply(cat, req.Language, req.Location != nil),
		Category:  cat,
		Type:      SyntheticType(cat, req.Location != nil),
		Source:    domain.SourceSynthetic,
		Timestamp: c.now(),
	}
}

func (c *Client) fallback(req Request, cat Category, cause error) (Reply, error) {
	if !c.cfg.SyntheticFallback {
		c.logger.Warn("Chat backend unavailable", "operation", "chat", "category", cat, "error", cause)
		return Reply{}, errors.Join(ErrNoReply, cause)
	}
	c.logger.Warn("Chat backend unavailable, answering offline",
		"operation", "chat", "source", domain.SourceSynthetic, "category", cat, "error", cause)
	return c.synthetic(req, cat), nil
}

// awaitOpen triggers a connect if needed and waits up to the connect grace.
func (c *Client) awaitOpen(ctx context.Context) bool {
	if c.transport.State() == StateOpen {
		return true
	}
	done := c.transport.StartConnect()

	timer := time.NewTimer(c.cfg.ConnectGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	return c.transport.State() == StateOpen
}

func (c *Client) buildContext(ctx context.Context, req Request, cat Category) FrameContext {
	lang := req.Language
	if !lang.IsSupported() {
		lang = domain.LangEnglish
	}
	fc := FrameContext{
		Domain:                "agriculture",
		Region:                region(req),
		LanguagePreference:    string(lang),
		ExpertiseLevel:        c.cfg.ExpertiseLevel,
		CropsOfInterest:       crops(req.Profile),
		CurrentSeason:         agronomy.SeasonAt(c.now()),
		IncludeLocalKnowledge: true,
	}
	if req.Location == nil {
		return fc
	}

	switch cat {
	case CategoryWeather:
		if report, ok := c.snapshot(ctx, req.Location); ok {
			fc.Weather = &report
		}
	case CategoryCrop:
		soil := agronomy.SoilProfile()
		fc.Soil = &soil
		if report, ok := c.snapshot(ctx, req.Location); ok {
			rain := report.TotalRainfall()
			fc.RainfallMM = &rain
		}
	case CategoryMarket:
		fc.MarketPrices = agronomy.MarketPrices()
	}
	return fc
}

func (c *Client) snapshot(ctx context.Context, loc *domain.UserLocation) (domain.WeatherReport, bool) {
	if c.weather == nil {
		return domain.WeatherReport{}, false
	}
	lat, lon := loc.Latitude, loc.Longitude
	report, err := c.weather.Forecast(ctx, weather.Query{Location: loc.LocationName, Latitude: &lat, Longitude: &lon})
	if err != nil {
		c.logger.Debug("Skipping weather context", "error", err)
		return domain.WeatherReport{}, false
	}
	return report, true
}

func region(req Request) string {
	switch {
	case req.Location != nil && req.Location.Region != "":
		return req.Location.Region
	case req.Profile.Region != "":
		return req.Profile.Region
	default:
		return "India"
	}
}

func crops(p domain.Profile) []string {
	if len(p.PrimaryCrops) == 0 {
		return []string{}
	}
	out := make([]string, len(p.PrimaryCrops))
	for i, c := range p.PrimaryCrops {
		out[i] = strings.ToLower(c)
	}
	return out
}

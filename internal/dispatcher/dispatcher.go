// Package dispatcher is the single entry point the dashboard uses to fetch
// data. Every operation succeeds: when an upstream integration fails, or the
// service is offline, the result is served from mocks, heuristics or the
// offline chat responder and tagged with its source.
package dispatcher

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/ashureev/smartkissan/internal/agronomy"
	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/geocode"
	"github.com/ashureev/smartkissan/internal/weather"
)

// Envelope wraps every dispatcher result.
type Envelope[T any] struct {
	Success bool          `json:"success"`
	Data    T             `json:"data"`
	Source  domain.Source `json:"source"`
	Offline bool          `json:"offline,omitempty"`
}

// WeatherProvider fetches live forecasts.
type WeatherProvider interface {
	Forecast(ctx context.Context, q weather.Query) (domain.WeatherReport, error)
}

// Geocoder resolves coordinates to places.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.Place, error)
}

// ChatAsker answers farmer questions.
type ChatAsker interface {
	Ask(ctx context.Context, req chat.Request) (chat.Reply, error)
	Synthetic(req chat.Request) chat.Reply
}

// StatusReporter reports whether the service can reach the network.
type StatusReporter interface {
	Status() domain.NetworkStatus
}

// Deps are the integrations the dispatcher routes to. Any of them may be nil,
// in which case the matching operation always uses its fallback.
type Deps struct {
	Data     *DataAPI
	Weather  WeatherProvider
	Geocoder Geocoder
	Chat     ChatAsker
	Status   StatusReporter
}

// CropParams selects crop recommendations. Temperature and Humidity enable
// the climate heuristic when the data API cannot answer.
type CropParams struct {
	SoilType    string   `json:"soil_type"`
	Location    string   `json:"location"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// YieldParams selects yield predictions.
type YieldParams struct {
	Crop     string `json:"crop"`
	Location string `json:"location"`
}

// PriceParams selects a price forecast.
type PriceParams struct {
	Crop   string `json:"crop"`
	Period string `json:"period"`
}

// WeatherParams selects a forecast location. With nothing set, the default
// location is used.
type WeatherParams struct {
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// SatelliteParams selects satellite data.
type SatelliteParams struct {
	Location string `json:"location"`
	Date     string `json:"date"`
}

// FieldParams locates a field.
type FieldParams struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Dispatcher routes dashboard requests to integrations with fallbacks.
type Dispatcher struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a dispatcher.
func New(deps Deps, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{deps: deps, logger: logger, now: time.Now}
}

func (d *Dispatcher) offline() bool {
	return d.deps.Status != nil && d.deps.Status.Status() == domain.NetworkOffline
}

func (d *Dispatcher) warn(operation string, source domain.Source, err error) {
	d.logger.Warn("Upstream failed, serving fallback", "operation", operation, "source", source, "error", err)
}

// CropRecommendations returns recommendations from the data API, falling back
// to the climate heuristic when readings are known, or the built-in list.
func (d *Dispatcher) CropRecommendations(ctx context.Context, p CropParams) Envelope[[]domain.CropRecommendation] {
	offline := d.offline()
	if !offline && d.deps.Data.Enabled() {
		params := url.Values{}
		setIf(params, "soilType", p.SoilType)
		setIf(params, "location", p.Location)

		var out []domain.CropRecommendation
		err := d.deps.Data.fetch(ctx, "/crop-recommendations", params, &out)
		if err == nil {
			return Envelope[[]domain.CropRecommendation]{Success: true, Data: out, Source: domain.SourceLive}
		}
		d.warn("crop_recommendations", fallbackSource(p), err)
	}

	if p.Temperature != nil && p.Humidity != nil {
		recs := agronomy.HeuristicRecommendations(*p.Temperature, *p.Humidity, p.SoilType, d.now())
		return Envelope[[]domain.CropRecommendation]{Success: true, Data: recs, Source: domain.SourceHeuristic, Offline: offline}
	}
	return Envelope[[]domain.CropRecommendation]{Success: true, Data: agronomy.CropRecommendations(), Source: domain.SourceMock, Offline: offline}
}

func fallbackSource(p CropParams) domain.Source {
	if p.Temperature != nil && p.Humidity != nil {
		return domain.SourceHeuristic
	}
	return domain.SourceMock
}

// YieldPredictions returns yield estimates.
func (d *Dispatcher) YieldPredictions(ctx context.Context, p YieldParams) Envelope[[]domain.YieldPrediction] {
	offline := d.offline()
	if !offline && d.deps.Data.Enabled() {
		params := url.Values{}
		setIf(params, "crop", p.Crop)
		setIf(params, "location", p.Location)

		var out []domain.YieldPrediction
		err := d.deps.Data.fetch(ctx, "/yield-predictions", params, &out)
		if err == nil {
			return Envelope[[]domain.YieldPrediction]{Success: true, Data: out, Source: domain.SourceLive}
		}
		d.warn("yield_predictions", domain.SourceMock, err)
	}
	return Envelope[[]domain.YieldPrediction]{Success: true, Data: agronomy.YieldPredictions(), Source: domain.SourceMock, Offline: offline}
}

// PriceForecasts returns a monthly price forecast.
func (d *Dispatcher) PriceForecasts(ctx context.Context, p PriceParams) Envelope[[]domain.PriceForecast] {
	offline := d.offline()
	if !offline && d.deps.Data.Enabled() {
		params := url.Values{}
		setIf(params, "crop", p.Crop)
		setIf(params, "period", p.Period)

		var out []domain.PriceForecast
		err := d.deps.Data.fetch(ctx, "/price-forecasts", params, &out)
		if err == nil {
			return Envelope[[]domain.PriceForecast]{Success: true, Data: out, Source: domain.SourceLive}
		}
		d.warn("price_forecasts", domain.SourceMock, err)
	}
	return Envelope[[]domain.PriceForecast]{Success: true, Data: agronomy.PriceForecasts(), Source: domain.SourceMock, Offline: offline}
}

// Weather returns the forecast for a place or coordinate pair.
func (d *Dispatcher) Weather(ctx context.Context, p WeatherParams) Envelope[domain.WeatherReport] {
	q := weather.Query{Location: p.Location, Latitude: p.Latitude, Longitude: p.Longitude}
	if q.String() == "" {
		lat, lon := domain.DefaultLatitude, domain.DefaultLongitude
		q.Latitude, q.Longitude = &lat, &lon
	}

	offline := d.offline()
	if !offline && d.deps.Weather != nil {
		report, err := d.deps.Weather.Forecast(ctx, q)
		if err == nil {
			return Envelope[domain.WeatherReport]{Success: true, Data: report, Source: domain.SourceLive}
		}
		d.warn("weather", domain.SourceMock, err)
	}
	return Envelope[domain.WeatherReport]{Success: true, Data: agronomy.Weather(p.Location), Source: domain.SourceMock, Offline: offline}
}

// Satellite returns the latest satellite summary.
func (d *Dispatcher) Satellite(ctx context.Context, p SatelliteParams) Envelope[domain.SatelliteData] {
	offline := d.offline()
	if !offline && d.deps.Data.Enabled() {
		params := url.Values{}
		setIf(params, "location", p.Location)
		setIf(params, "date", p.Date)

		var out domain.SatelliteData
		err := d.deps.Data.fetch(ctx, "/satellite-data", params, &out)
		if err == nil {
			return Envelope[domain.SatelliteData]{Success: true, Data: out, Source: domain.SourceLive}
		}
		d.warn("satellite", domain.SourceMock, err)
	}
	return Envelope[domain.SatelliteData]{Success: true, Data: agronomy.Satellite(), Source: domain.SourceMock, Offline: offline}
}

// ReverseGeocode resolves coordinates to a place. Failure yields
// Success=false and no place rather than an error.
func (d *Dispatcher) ReverseGeocode(ctx context.Context, lat, lon float64) Envelope[*geocode.Place] {
	if d.offline() {
		return Envelope[*geocode.Place]{Source: domain.SourceMock, Offline: true}
	}
	if d.deps.Geocoder == nil {
		return Envelope[*geocode.Place]{Source: domain.SourceMock}
	}
	place, err := d.deps.Geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		d.warn("reverse_geocode", domain.SourceMock, err)
		return Envelope[*geocode.Place]{Source: domain.SourceMock}
	}
	return Envelope[*geocode.Place]{Success: true, Data: place, Source: domain.SourceLive}
}

// Chat answers a farmer question. When offline or when the chat client gives
// up, the offline responder answers.
func (d *Dispatcher) Chat(ctx context.Context, req chat.Request) Envelope[chat.Reply] {
	if d.deps.Chat == nil {
		r := chat.DefaultResponder()
		cat := chat.Classify(req.Text)
		reply := chat.Reply{
			Text:      r.Reply(cat, req.Language, req.Location != nil),
			Category:  cat,
			Type:      chat.SyntheticType(cat, req.Location != nil),
			Source:    domain.SourceSynthetic,
			Timestamp: d.now(),
		}
		return Envelope[chat.Reply]{Success: true, Data: reply, Source: domain.SourceSynthetic, Offline: d.offline()}
	}
	if d.offline() {
		return Envelope[chat.Reply]{Success: true, Data: d.deps.Chat.Synthetic(req), Source: domain.SourceSynthetic, Offline: true}
	}

	reply, err := d.deps.Chat.Ask(ctx, req)
	if err != nil {
		d.warn("chat", domain.SourceSynthetic, err)
		reply = d.deps.Chat.Synthetic(req)
	}
	return Envelope[chat.Reply]{Success: true, Data: reply, Source: reply.Source}
}

// FieldHealth derives the NDVI history and crop health of a field.
func (d *Dispatcher) FieldHealth(_ context.Context, p FieldParams) Envelope[domain.FieldHealth] {
	health := agronomy.AnalyzeField(p.Latitude, p.Longitude, d.now(), nil)
	return Envelope[domain.FieldHealth]{Success: true, Data: health, Source: domain.SourceHeuristic, Offline: d.offline()}
}

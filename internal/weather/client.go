// Package weather fetches forecasts from the weather provider and normalizes
// them into the dashboard's report shape.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("weather provider not configured")
	// ErrNoLocation is returned when the query names no place.
	ErrNoLocation = errors.New("weather query has no location")
)

// Config holds the provider settings.
type Config struct {
	BaseURL      string
	APIKey       string
	ForecastDays int
	Timeout      time.Duration
}

// Query selects the forecast location: a place name or a coordinate pair.
type Query struct {
	Location  string
	Latitude  *float64
	Longitude *float64
}

// String renders the query in the provider's q= format.
func (q Query) String() string {
	if q.Latitude != nil && q.Longitude != nil {
		return strconv.FormatFloat(*q.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(*q.Longitude, 'f', 4, 64)
	}
	return strings.TrimSpace(q.Location)
}

// Client talks to a WeatherAPI-compatible forecast endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a weather client. A nil httpClient gets one bounded by cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

// Forecast fetches current conditions and a multi-day forecast.
func (c *Client) Forecast(ctx context.Context, q Query) (domain.WeatherReport, error) {
	if !c.Configured() {
		return domain.WeatherReport{}, ErrNotConfigured
	}
	where := q.String()
	if where == "" {
		return domain.WeatherReport{}, ErrNoLocation
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("q", where)
	params.Set("days", strconv.Itoa(c.cfg.ForecastDays))
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/forecast.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("forecast request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close weather response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("read forecast: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr providerError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return domain.WeatherReport{}, fmt.Errorf("weather provider %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return domain.WeatherReport{}, fmt.Errorf("weather provider returned status %d", resp.StatusCode)
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.WeatherReport{}, fmt.Errorf("decode forecast: %w", err)
	}
	if raw.Location.Name == "" {
		return domain.WeatherReport{}, fmt.Errorf("decode forecast: missing location")
	}

	return raw.normalize(), nil
}

// Ping checks that the provider answers. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping weather provider: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

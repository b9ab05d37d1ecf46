// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	GRPCHealthPort  string
	SessionTTL      time.Duration
	Weather         WeatherConfig
	Geocode         GeocodeConfig
	DataAPI         DataAPIConfig
	Chat            ChatConfig
	Location        LocationConfig
	Probe           ProbeConfig
	RateLimit       RateLimitConfig
	Retention       RetentionConfig
	ConversationLog ConversationLogConfig
}

// WeatherConfig points at the weather provider.
type WeatherConfig struct {
	BaseURL      string
	APIKey       string
	ForecastDays int
	Timeout      time.Duration
}

// GeocodeConfig points at the reverse geocoding provider.
type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// DataAPIConfig points at the agronomy data backend. An empty BaseURL
// means every dataset is served from the built-in mocks.
type DataAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ChatConfig controls the chat backend connection.
type ChatConfig struct {
	URL               string
	ReplyTimeout      time.Duration
	ConnectGrace      time.Duration
	SyntheticFallback bool
	TranscriptLimit   int
	ExpertiseLevel    string
}

// LocationConfig controls geolocation caching.
type LocationConfig struct {
	Freshness     time.Duration
	LookupTimeout time.Duration
}

// ProbeConfig controls connectivity and integration probes.
type ProbeConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// RateLimitConfig controls per-user assistant throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RetentionConfig controls the cleanup worker.
type RetentionConfig struct {
	Schedule string
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/smartkissan.db"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", ""),
		SessionTTL:     getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		Weather: WeatherConfig{
			BaseURL:      getEnv("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
			APIKey:       getEnv("WEATHER_API_KEY", ""),
			ForecastDays: getEnvInt("WEATHER_FORECAST_DAYS", 5),
			Timeout:      getEnvDuration("WEATHER_API_TIMEOUT", 10*time.Second),
		},
		Geocode: GeocodeConfig{
			BaseURL:   getEnv("GEOCODE_API_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "SmartKissan/1.0 (farmer dashboard)"),
			Timeout:   getEnvDuration("GEOCODE_API_TIMEOUT", 10*time.Second),
		},
		DataAPI: DataAPIConfig{
			BaseURL: getEnv("DATA_API_URL", ""),
			Timeout: getEnvDuration("DATA_API_TIMEOUT", 10*time.Second),
		},
		Chat: ChatConfig{
			URL:               getEnv("CHAT_WS_URL", ""),
			ReplyTimeout:      getEnvDuration("CHAT_REPLY_TIMEOUT", 5*time.Second),
			ConnectGrace:      getEnvDuration("CHAT_CONNECT_GRACE", time.Second),
			SyntheticFallback: getEnvBool("CHAT_SYNTHETIC_FALLBACK", true),
			TranscriptLimit:   getEnvInt("CHAT_TRANSCRIPT_LIMIT", 50),
			ExpertiseLevel:    getEnv("CHAT_EXPERTISE_LEVEL", "beginner"),
		},
		Location: LocationConfig{
			Freshness:     getEnvDuration("LOCATION_FRESHNESS", 24*time.Hour),
			LookupTimeout: getEnvDuration("GEOLOCATION_TIMEOUT", 15*time.Second),
		},
		Probe: ProbeConfig{
			URL:      getEnv("PROBE_URL", "https://www.google.com/generate_204"),
			Interval: getEnvDuration("PROBE_INTERVAL", 30*time.Second),
			Timeout:  getEnvDuration("PROBE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Retention: RetentionConfig{
			Schedule: getEnv("RETENTION_SCHEDULE", "0 * * * *"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent field checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Weather.ForecastDays < 1 || c.Weather.ForecastDays > 14 {
		return fmt.Errorf("WEATHER_FORECAST_DAYS must be between 1 and 14")
	}
	if c.Chat.URL != "" {
		u, err := url.Parse(c.Chat.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("CHAT_WS_URL must be a ws:// or wss:// URL")
		}
	}
	if c.Chat.ReplyTimeout <= 0 {
		return fmt.Errorf("CHAT_REPLY_TIMEOUT must be > 0")
	}
	if c.Chat.ConnectGrace < 0 {
		return fmt.Errorf("CHAT_CONNECT_GRACE cannot be negative")
	}
	if c.Chat.TranscriptLimit <= 0 {
		return fmt.Errorf("CHAT_TRANSCRIPT_LIMIT must be > 0")
	}
	if c.Location.Freshness <= 0 {
		return fmt.Errorf("LOCATION_FRESHNESS must be > 0")
	}
	if c.Location.LookupTimeout <= 0 {
		return fmt.Errorf("GEOLOCATION_TIMEOUT must be > 0")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if !gronx.New().IsValid(c.Retention.Schedule) {
		return fmt.Errorf("RETENTION_SCHEDULE %q is not a valid cron expression", c.Retention.Schedule)
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the dashboard.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("5s") or bare milliseconds ("5000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleForecast = `{
  "location": {"name": "Ludhiana", "region": "Punjab", "country": "India", "lat": 30.9, "lon": 75.85},
  "current": {
    "temp_c": 31.2, "feelslike_c": 34.0, "humidity": 58, "wind_kph": 14.4, "wind_degree": 290,
    "precip_mm": 0.1, "condition": {"text": "Sunny", "icon": "//cdn.weatherapi.com/weather/64x64/day/113.png"}
  },
  "forecast": {"forecastday": [
    {"date": "2025-06-02", "day": {"maxtemp_c": 38, "mintemp_c": 27, "avgtemp_c": 32, "totalprecip_mm": 0, "daily_chance_of_rain": 0, "condition": {"text": "Sunny", "icon": "//cdn/113.png"}}},
    {"date": "2025-06-03", "day": {"maxtemp_c": 36, "mintemp_c": 26, "avgtemp_c": 31, "totalprecip_mm": 2.5, "daily_chance_of_rain": 40, "condition": {"text": "Patchy rain", "icon": "//cdn/176.png"}}},
    {"date": "2025-06-04", "day": {"maxtemp_c": 33, "mintemp_c": 25, "avgtemp_c": 29, "totalprecip_mm": 11, "daily_chance_of_rain": 85, "condition": {"text": "Moderate rain", "icon": "//cdn/302.png"}}}
  ]}
}`

func TestWindDirection(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{360, "N"},
		{11.24, "N"},
		{11.25, "NNE"},
		{22.5, "NNE"},
		{45, "NE"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{290, "WNW"},
		{348.75, "N"},
		{348.74, "NNW"},
		{-90, "W"},
		{720, "N"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindDirection(tt.deg), "degrees=%v", tt.deg)
	}
}

func TestWindDirectionTotal(t *testing.T) {
	for deg := 0.0; deg < 360; deg += 0.5 {
		assert.Contains(t, compassPoints, WindDirection(deg))
		assert.Equal(t, WindDirection(deg), WindDirection(deg+360))
	}
}

func TestForecastNormalizes(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast.json", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "secret", ForecastDays: 3}, srv.Client(), nil)
	lat, lon := 30.9, 75.85
	report, err := c.Forecast(context.Background(), Query{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)

	assert.Equal(t, "30.9000,75.8500", gotQuery)
	assert.Equal(t, "Ludhiana", report.Location)
	assert.Equal(t, "WNW", report.Current.WindDirection)
	assert.Equal(t, "https://cdn.weatherapi.com/weather/64x64/day/113.png", report.Current.IconURL)
	assert.False(t, report.IsMock)
	require.Len(t, report.Forecast, 3)
	assert.Equal(t, "Today", report.Forecast[0].Day)
	assert.Equal(t, "Tomorrow", report.Forecast[1].Day)
	assert.Equal(t, "Wednesday", report.Forecast[2].Day)
	assert.InDelta(t, 13.5, report.TotalRainfall(), 1e-9)
}

func TestForecastProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client(), nil)
	_, err := c.Forecast(context.Background(), Query{Location: "Atlantis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No matching location found.")
}

func TestForecastMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current": "nope"`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client(), nil)
	_, err := c.Forecast(context.Background(), Query{Location: "Patiala"})
	assert.Error(t, err)
}

func TestForecastPreconditions(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, nil, nil)
	_, err := c.Forecast(context.Background(), Query{Location: "Patiala"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	c = NewClient(Config{BaseURL: "http://unused", APIKey: "k"}, nil, nil)
	_, err = c.Forecast(context.Background(), Query{Location: "  "})
	assert.ErrorIs(t, err, ErrNoLocation)
}

// Package agronomy holds the farm datasets and heuristics used when no
// upstream service can answer.
package agronomy

import (
	"github.com/ashureev/smartkissan/internal/domain"
)

// CropRecommendations returns the built-in recommendation list.
func CropRecommendations() []domain.CropRecommendation {
	return []domain.CropRecommendation{
		{ID: 1, Name: "Rice", Confidence: 0.92, SoilType: "Clay Loam", Season: "Kharif"},
		{ID: 2, Name: "Wheat", Confidence: 0.85, SoilType: "Clay Loam", Season: "Rabi"},
		{ID: 3, Name: "Cotton", Confidence: 0.78, SoilType: "Clay Loam", Season: "Kharif"},
	}
}

// YieldPredictions returns the built-in yield estimates.
func YieldPredictions() []domain.YieldPrediction {
	return []domain.YieldPrediction{
		{ID: 1, Crop: "Rice", PredictedYield: 4.5, Unit: "tons/ha", Probability: 0.88},
		{ID: 2, Crop: "Wheat", PredictedYield: 3.8, Unit: "tons/ha", Probability: 0.82},
		{ID: 3, Crop: "Cotton", PredictedYield: 2.2, Unit: "tons/ha", Probability: 0.75},
	}
}

// PriceForecasts returns a twelve month price curve in rupees per quintal.
func PriceForecasts() []domain.PriceForecast {
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	prices := []float64{1800, 1850, 1900, 1920, 1800, 1750, 1700, 1800, 1900, 2000, 1950, 1900}

	out := make([]domain.PriceForecast, len(months))
	for i := range months {
		out[i] = domain.PriceForecast{Month: months[i], Price: prices[i]}
	}
	return out
}

// Weather returns the placeholder report shown when the provider is down.
func Weather(location string) domain.WeatherReport {
	if location == "" {
		location = "Punjab"
	}
	return domain.WeatherReport{
		Location: location,
		Country:  "India",
		Current: domain.CurrentWeather{
			TempC:         28,
			FeelsLikeC:    30,
			Humidity:      65,
			WindKph:       12,
			WindDegree:    315,
			WindDirection: "NW",
			Description:   "Partly cloudy",
			RainfallMM:    0,
		},
		Forecast: []domain.ForecastDay{
			{Day: "Today", AvgTempC: 28, MaxTempC: 32, MinTempC: 22, RainfallMM: 0, Description: "Partly cloudy"},
			{Day: "Tomorrow", AvgTempC: 29, MaxTempC: 33, MinTempC: 23, RainfallMM: 0, Description: "Sunny"},
			{Day: "Wednesday", AvgTempC: 27, MaxTempC: 30, MinTempC: 22, RainfallMM: 10, ChanceOfRain: 60, Description: "Light rain"},
			{Day: "Thursday", AvgTempC: 26, MaxTempC: 29, MinTempC: 21, RainfallMM: 15, ChanceOfRain: 80, Description: "Rain"},
			{Day: "Friday", AvgTempC: 28, MaxTempC: 31, MinTempC: 22, RainfallMM: 5, ChanceOfRain: 40, Description: "Light rain"},
		},
		IsMock: true,
	}
}

// Satellite returns the placeholder field summary.
func Satellite() domain.SatelliteData {
	return domain.SatelliteData{
		NDVI:         0.72,
		SoilMoisture: 65,
		LastUpdated:  "2024-03-28",
		HealthStatus: "Good",
		ImageURL:     "https://example.com/satellite-image.jpg",
	}
}

// SoilProfile returns the reference soil profile sent with crop questions.
func SoilProfile() domain.SoilProfile {
	return domain.SoilProfile{
		Type:      "Clay Loam",
		PH:        6.8,
		Nitrogen:  "Medium",
		Phosphate: "Low",
		Potassium: "High",
		Organic:   "Medium",
	}
}

// MarketPrices returns the reference mandi price table sent with market questions.
func MarketPrices() []domain.MarketPrice {
	return []domain.MarketPrice{
		{Crop: "Wheat", Price: 2275, Unit: "INR/quintal", Market: "Khanna", Trend: "up"},
		{Crop: "Rice", Price: 2183, Unit: "INR/quintal", Market: "Ludhiana", Trend: "stable"},
		{Crop: "Cotton", Price: 6620, Unit: "INR/quintal", Market: "Bathinda", Trend: "down"},
		{Crop: "Mustard", Price: 5650, Unit: "INR/quintal", Market: "Sri Ganganagar", Trend: "up"},
	}
}

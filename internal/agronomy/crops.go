package agronomy

import (
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

var (
	warmHumidCrops = []string{"Rice", "Cotton", "Sugarcane"}
	mildCrops      = []string{"Wheat", "Barley", "Mustard"}
	coolCrops      = []string{"Potato", "Peas", "Beans"}
	coldCrops      = []string{"Cabbage", "Cauliflower", "Lettuce"}
)

// RecommendCrops picks a crop list from temperature (°C) and relative humidity (%).
// The brackets are checked top to bottom; humidity only matters for the warm
// bracket. A reading of exactly 25 °C with humidity above 60 is warm, exactly
// 20 °C is mild, and humidity of exactly 60 never qualifies as humid.
func RecommendCrops(temp, humidity float64) []string {
	var crops []string
	switch {
	case temp >= 25 && humidity > 60:
		crops = warmHumidCrops
	case temp >= 20 && temp <= 25:
		crops = mildCrops
	case temp > 15 && temp < 20:
		crops = coolCrops
	default:
		crops = coldCrops
	}
	out := make([]string, len(crops))
	copy(out, crops)
	return out
}

// HeuristicRecommendations turns RecommendCrops output into dashboard records.
// Confidence decreases with rank since the ladder carries no scores.
func HeuristicRecommendations(temp, humidity float64, soilType string, now time.Time) []domain.CropRecommendation {
	if soilType == "" {
		soilType = "Clay Loam"
	}
	season := SeasonAt(now)
	names := RecommendCrops(temp, humidity)

	out := make([]domain.CropRecommendation, len(names))
	for i, name := range names {
		out[i] = domain.CropRecommendation{
			ID:         i + 1,
			Name:       name,
			Confidence: 0.7 - 0.1*float64(i),
			SoilType:   soilType,
			Season:     season,
		}
	}
	return out
}

// SeasonAt returns the Indian cropping season for the given date:
// Kharif (June to October), Rabi (November to March) or Zaid (April, May).
func SeasonAt(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.June && m <= time.October:
		return "Kharif"
	case m == time.April || m == time.May:
		return "Zaid"
	default:
		return "Rabi"
	}
}

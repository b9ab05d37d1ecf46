package agronomy

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

const (
	ndviHistoryDays = 180
	ndviStepDays    = 10
)

// NDVISeries synthesizes a vegetation index history ending at now, one point
// every ten days over the past six months, oldest first. rng supplies the
// noise; pass a seeded source for reproducible series.
func NDVISeries(now time.Time, rng *rand.Rand) []domain.NDVIPoint {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}

	points := make([]domain.NDVIPoint, 0, ndviHistoryDays/ndviStepDays+1)
	for i := ndviHistoryDays; i >= 0; i -= ndviStepDays {
		date := now.AddDate(0, 0, -i)
		doy := float64(date.YearDay())
		season := math.Sin(doy / 365 * 2 * math.Pi)

		ndvi := clamp(season*0.2+0.6+(rng.Float64()*0.1-0.05), 0, 1)
		temp := 20 + season*10 + (rng.Float64()*4 - 2)

		base := 3.0
		if doy > 150 && doy < 250 {
			base = 12
		}
		precip := math.Max(0, base+(rng.Float64()*10-5))

		points = append(points, domain.NDVIPoint{
			Date:          date.Format("2006-01-02"),
			NDVI:          round(ndvi, 2),
			Temperature:   round(temp, 1),
			Precipitation: round(precip, 1),
		})
	}
	return points
}

// AssessHealth grades crop health from an NDVI value.
func AssessHealth(ndvi float64) domain.CropHealth {
	switch {
	case ndvi >= 0.7:
		return domain.CropHealth{Status: "Excellent", Recommendations: []string{
			"Maintain current irrigation schedule",
			"Continue regular monitoring for pests",
			"Prepare for optimal harvest timing",
		}}
	case ndvi >= 0.5:
		return domain.CropHealth{Status: "Good", Recommendations: []string{
			"Consider slight increase in irrigation frequency",
			"Monitor for early signs of nutrient deficiency",
			"Apply foliar fertilizer if leaves show yellowing",
		}}
	case ndvi >= 0.3:
		return domain.CropHealth{Status: "Fair", Recommendations: []string{
			"Increase irrigation immediately",
			"Apply balanced NPK fertilizer",
			"Check for pest infestations or disease",
			"Consider soil testing for deficiencies",
		}}
	default:
		return domain.CropHealth{Status: "Poor", Recommendations: []string{
			"Urgent intervention required",
			"Check irrigation system for failures",
			"Test soil for salinity or contamination",
			"Consider consultation with agricultural extension",
		}}
	}
}

// RecentAverage is the mean NDVI of the last three samples (about 30 days).
func RecentAverage(series []domain.NDVIPoint) float64 {
	if len(series) == 0 {
		return 0
	}
	start := max(len(series)-3, 0)
	var sum float64
	for _, p := range series[start:] {
		sum += p.NDVI
	}
	return round(sum/float64(len(series)-start), 2)
}

// AnalyzeField builds the full field health summary for a location.
func AnalyzeField(lat, lon float64, now time.Time, rng *rand.Rand) domain.FieldHealth {
	series := NDVISeries(now, rng)
	current := series[len(series)-1].NDVI
	return domain.FieldHealth{
		Latitude:      lat,
		Longitude:     lon,
		Series:        series,
		CurrentNDVI:   current,
		RecentAverage: RecentAverage(series),
		Health:        AssessHealth(current),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

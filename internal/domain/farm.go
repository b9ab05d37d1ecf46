package domain

// CropRecommendation is a crop suggested for a field.
type CropRecommendation struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	SoilType   string  `json:"soil_type"`
	Season     string  `json:"season"`
}

// YieldPrediction is the expected output for a crop.
type YieldPrediction struct {
	ID             int     `json:"id"`
	Crop           string  `json:"crop"`
	PredictedYield float64 `json:"predicted_yield"`
	Unit           string  `json:"unit"`
	Probability    float64 `json:"probability"`
}

// PriceForecast is the forecast market price for one month.
type PriceForecast struct {
	Month string  `json:"month"`
	Price float64 `json:"price"`
}

// CurrentWeather holds present conditions at a location.
type CurrentWeather struct {
	TempC         float64 `json:"temp_c"`
	FeelsLikeC    float64 `json:"feels_like_c"`
	Humidity      float64 `json:"humidity"`
	WindKph       float64 `json:"wind_kph"`
	WindDegree    float64 `json:"wind_degree"`
	WindDirection string  `json:"wind_direction"`
	Description   string  `json:"description"`
	IconURL       string  `json:"icon_url,omitempty"`
	RainfallMM    float64 `json:"rainfall_mm"`
}

// ForecastDay is one day of a multi-day forecast.
type ForecastDay struct {
	Date         string  `json:"date,omitempty"`
	Day          string  `json:"day"`
	MaxTempC     float64 `json:"max_temp_c"`
	MinTempC     float64 `json:"min_temp_c"`
	AvgTempC     float64 `json:"avg_temp_c"`
	RainfallMM   float64 `json:"rainfall_mm"`
	ChanceOfRain float64 `json:"chance_of_rain"`
	Description  string  `json:"description"`
	IconURL      string  `json:"icon_url,omitempty"`
}

// WeatherReport is the normalized weather shape served to the dashboard.
type WeatherReport struct {
	Location string         `json:"location"`
	Region   string         `json:"region,omitempty"`
	Country  string         `json:"country,omitempty"`
	Current  CurrentWeather `json:"current"`
	Forecast []ForecastDay  `json:"forecast"`
	IsMock   bool           `json:"is_mock"`
}

// TotalRainfall sums forecast rainfall across all days.
func (w WeatherReport) TotalRainfall() float64 {
	var total float64
	for _, d := range w.Forecast {
		total += d.RainfallMM
	}
	return total
}

// SatelliteData is the latest remote-sensing summary of a field.
type SatelliteData struct {
	NDVI         float64 `json:"ndvi"`
	SoilMoisture float64 `json:"soil_moisture"`
	LastUpdated  string  `json:"last_updated"`
	HealthStatus string  `json:"health_status"`
	ImageURL     string  `json:"image_url"`
}

// NDVIPoint is one sample of a vegetation index time series.
type NDVIPoint struct {
	Date          string  `json:"date"`
	NDVI          float64 `json:"ndvi"`
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation"`
}

// CropHealth is the assessment derived from the latest NDVI value.
type CropHealth struct {
	Status          string   `json:"status"`
	Recommendations []string `json:"recommendations"`
}

// FieldHealth bundles a field's NDVI history with its assessment.
type FieldHealth struct {
	Latitude      float64     `json:"latitude"`
	Longitude     float64     `json:"longitude"`
	Series        []NDVIPoint `json:"series"`
	CurrentNDVI   float64     `json:"current_ndvi"`
	RecentAverage float64     `json:"recent_average"`
	Health        CropHealth  `json:"health"`
}

// SoilProfile describes the soil of a field.
type SoilProfile struct {
	Type      string  `json:"type"`
	PH        float64 `json:"ph"`
	Nitrogen  string  `json:"nitrogen"`
	Phosphate string  `json:"phosphate"`
	Potassium string  `json:"potassium"`
	Organic   string  `json:"organic_matter"`
}

// MarketPrice is a current mandi price for a commodity.
type MarketPrice struct {
	Crop   string  `json:"crop"`
	Price  float64 `json:"price"`
	Unit   string  `json:"unit"`
	Market string  `json:"market"`
	Trend  string  `json:"trend"`
}

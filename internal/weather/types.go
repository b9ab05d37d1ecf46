package weather

import (
	"strings"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type forecastResponse struct {
	Location struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	} `json:"location"`
	Current struct {
		TempC      float64   `json:"temp_c"`
		FeelsLikeC float64   `json:"feelslike_c"`
		Humidity   float64   `json:"humidity"`
		WindKph    float64   `json:"wind_kph"`
		WindDegree float64   `json:"wind_degree"`
		PrecipMM   float64   `json:"precip_mm"`
		Condition  condition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC          float64   `json:"maxtemp_c"`
				MinTempC          float64   `json:"mintemp_c"`
				AvgTempC          float64   `json:"avgtemp_c"`
				TotalPrecipMM     float64   `json:"totalprecip_mm"`
				DailyChanceOfRain float64   `json:"daily_chance_of_rain"`
				Condition         condition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (r *forecastResponse) normalize() domain.WeatherReport {
	report := domain.WeatherReport{
		Location: r.Location.Name,
		Region:   r.Location.Region,
		Country:  r.Location.Country,
		Current: domain.CurrentWeather{
			TempC:         r.Current.TempC,
			FeelsLikeC:    r.Current.FeelsLikeC,
			Humidity:      r.Current.Humidity,
			WindKph:       r.Current.WindKph,
			WindDegree:    r.Current.WindDegree,
			WindDirection: WindDirection(r.Current.WindDegree),
			Description:   r.Current.Condition.Text,
			IconURL:       iconURL(r.Current.Condition.Icon),
			RainfallMM:    r.Current.PrecipMM,
		},
		Forecast: make([]domain.ForecastDay, 0, len(r.Forecast.ForecastDay)),
	}

	for i, fd := range r.Forecast.ForecastDay {
		report.Forecast = append(report.Forecast, domain.ForecastDay{
			Date:         fd.Date,
			Day:          dayLabel(i, fd.Date),
			MaxTempC:     fd.Day.MaxTempC,
			MinTempC:     fd.Day.MinTempC,
			AvgTempC:     fd.Day.AvgTempC,
			RainfallMM:   fd.Day.TotalPrecipMM,
			ChanceOfRain: fd.Day.DailyChanceOfRain,
			Description:  fd.Day.Condition.Text,
			IconURL:      iconURL(fd.Day.Condition.Icon),
		})
	}
	return report
}

// iconURL upgrades protocol-relative icon links.
func iconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

func dayLabel(index int, date string) string {
	switch index {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Weekday().String()
}

package models

import "github.com/smogcast/smogcast/internal/forecast"

// SourceContribution is the normalized pollution source split.
type SourceContribution struct {
	StubbleFrac  float64 `json:"stubble_frac"`
	TrafficFrac  float64 `json:"traffic_frac"`
	IndustryFrac float64 `json:"industry_frac"`
}

// Assessment is the response of GET /v1/aqi.
type Assessment struct {
	Lat                   float64            `json:"lat"`
	Lon                   float64            `json:"lon"`
	StationID             string             `json:"station_id"`
	DistanceMeters        float64            `json:"distance_m"`
	ObservedAt            Timestamp          `json:"observed_at"`
	PM25                  float64            `json:"pm25"`
	AQICategory           string             `json:"aqi_category"`
	SourceContribution    SourceContribution `json:"source_contribution"`
	PolicyRecommendations []string           `json:"policy_recommendations"`
	PredictionSource      string             `json:"prediction_source"`
}

// ForecastPoint is one hour of a forecast response.
type ForecastPoint struct {
	Hour                  int                `json:"hour"`
	Timestamp             Timestamp          `json:"timestamp"`
	PM25                  float64            `json:"pm25"`
	AQICategory           string             `json:"aqi_category"`
	SourceContribution    SourceContribution `json:"source_contribution"`
	PolicyRecommendations []string           `json:"policy_recommendations"`
	PredictionSource      string             `json:"prediction_source"`
}

// Forecast is the response of GET /v1/forecast.
type Forecast struct {
	StationID  string          `json:"station_id"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	ObservedAt Timestamp       `json:"observed_at"`
	Forecasts  []ForecastPoint `json:"forecasts"`
}

// Station is an entry of GET /v1/stations.
type Station struct {
	StationID  string    `json:"station_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt Timestamp `json:"observed_at"`
	PM25       float64   `json:"pm25"`
}

// StationList is the response of GET /v1/stations.
type StationList struct {
	Items []Station `json:"items"`
	Count int       `json:"count"`
}

func contribution(a forecast.Attribution) SourceContribution {
	return SourceContribution{
		StubbleFrac:  a.StubbleFrac,
		TrafficFrac:  a.TrafficFrac,
		IndustryFrac: a.IndustryFrac,
	}
}

func recommendations(r []string) []string {
	if r == nil {
		return []string{}
	}
	return r
}

// AssessmentFrom converts a domain assessment.
func AssessmentFrom(a *forecast.Assessment) Assessment {
	return Assessment{
		Lat:                   a.Lat,
		Lon:                   a.Lon,
		StationID:             a.StationID,
		DistanceMeters:        a.DistanceMeters,
		ObservedAt:            Timestamp(a.ObservedAt),
		PM25:                  a.PM25,
		AQICategory:           string(a.Category),
		SourceContribution:    contribution(a.Attribution),
		PolicyRecommendations: recommendations(a.Recommendations),
		PredictionSource:      string(a.Source),
	}
}

// ForecastFrom converts a domain forecast.
func ForecastFrom(f *forecast.Forecast) Forecast {
	out := Forecast{
		StationID:  f.StationID,
		Lat:        f.Lat,
		Lon:        f.Lon,
		ObservedAt: Timestamp(f.ObservedAt),
		Forecasts:  make([]ForecastPoint, 0, len(f.Points)),
	}
	for _, p := range f.Points {
		out.Forecasts = append(out.Forecasts, ForecastPoint{
			Hour:                  p.Hour,
			Timestamp:             Timestamp(p.Timestamp),
			PM25:                  p.PM25,
			AQICategory:           string(p.Category),
			SourceContribution:    contribution(p.Attribution),
			PolicyRecommendations: recommendations(p.Recommendations),
			PredictionSource:      string(p.Source),
		})
	}
	return out
}

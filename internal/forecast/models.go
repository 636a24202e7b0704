// Package forecast resolves air quality, pollution source attribution and
// policy recommendations for a coordinate from the nearest monitoring station.
package forecast

import (
	"context"
	"errors"
	"time"
)

// Forecast errors.
var (
	// ErrNoStationsAvailable is returned when the observation set is empty.
	ErrNoStationsAvailable = errors.New("no stations available")

	// ErrInvalidHorizon is returned for a non-positive forecast horizon.
	ErrInvalidHorizon = errors.New("invalid forecast horizon")
)

// Prediction errors. Predictors return these (possibly wrapped); the
// orchestrator recovers from any predictor error by using observed values.
var (
	ErrPredictionUnavailable = errors.New("prediction unavailable")
	ErrMalformedPrediction   = errors.New("malformed prediction output")
)

// Predictor is the port to the external PM2.5 and source-attribution models.
type Predictor interface {
	// Available reports whether the models are loaded and reachable.
	Available() bool

	// PredictPM25 estimates the PM2.5 concentration in µg/m³.
	PredictPM25(ctx context.Context, features FeatureVector) (float64, error)

	// PredictAttribution returns raw stubble, traffic and industry shares.
	// Values may be negative or unnormalized.
	PredictAttribution(ctx context.Context, features FeatureVector) ([3]float64, error)
}

// EstimateSource identifies where an estimate came from.
type EstimateSource string

const (
	SourceModel    EstimateSource = "model"
	SourceObserved EstimateSource = "observed"
)

// Assessment is the current air quality resolved for a query coordinate.
type Assessment struct {
	// Lat and Lon are the resolved station's coordinates, not the query's.
	Lat       float64
	Lon       float64
	StationID string

	// DistanceMeters is the great-circle distance from the query point to the station.
	DistanceMeters float64

	ObservedAt      time.Time
	PM25            float64
	Category        Category
	Attribution     Attribution
	Recommendations []string
	Source          EstimateSource
}

// Point is one hour of a multi-hour forecast.
type Point struct {
	Hour            int
	Timestamp       time.Time
	PM25            float64
	Category        Category
	Attribution     Attribution
	Recommendations []string
	Source          EstimateSource
}

// Forecast is an hourly sequence of points for the nearest station.
type Forecast struct {
	StationID  string
	Lat        float64
	Lon        float64
	ObservedAt time.Time
	Points     []Point
}

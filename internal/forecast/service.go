package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smogcast/smogcast/internal/observation"
)

const tracerName = "github.com/smogcast/smogcast/internal/forecast"

// Horizon defaults in hours. The service accepts any positive horizon;
// MaxHorizonHours is the default cap applied by the HTTP API.
const (
	DefaultHorizonHours = 24
	MaxHorizonHours     = 168
)

// Recorder receives outcome counts for monitoring.
type Recorder interface {
	RecordAssessment(operation string, source EstimateSource)
	RecordAttributionFallback()
}

type nopRecorder struct{}

func (nopRecorder) RecordAssessment(string, EstimateSource) {}
func (nopRecorder) RecordAttributionFallback() {}

// ServiceConfig holds configuration for the forecast service.
type ServiceConfig struct {
	// Observations supplies the current station observations.
	Observations observation.Source

	// Predictor is the model port. Nil runs in fallback mode.
	Predictor Predictor

	// Logger for service operations.
	Logger zerolog.Logger

	// Recorder receives outcome counts. Optional.
	Recorder Recorder
}

// Service composes station lookup, prediction and classification into
// point assessments and hourly forecasts. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	observations observation.Source
	predictor    Predictor
	logger       zerolog.Logger
	recorder     Recorder
	tracer       trace.Tracer
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	var recorder Recorder = nopRecorder{}
	if cfg.Recorder != nil {
		recorder = cfg.Recorder
	}

	return &Service{
		observations: cfg.Observations,
		predictor:    cfg.Predictor,
		logger:       cfg.Logger,
		recorder:     recorder,
		tracer:       otel.Tracer(tracerName),
	}
}

// Assess resolves the current air quality at (lat, lon) from the nearest station.
func (s *Service) Assess(ctx context.Context, lat, lon float64) (*Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.Assess", trace.WithAttributes(
		attribute.Float64("query.lat", lat),
		attribute.Float64("query.lon", lon),
	))
	defer span.End()

	station, err := s.nearest(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("station.id", station.StationID))

	est := s.resolve(ctx, FeaturesFrom(station), station)
	s.recorder.RecordAssessment("assess", est.source)

	return &Assessment{
		Lat:             station.Lat,
		Lon:             station.Lon,
		StationID:       station.StationID,
		DistanceMeters:  HaversineDistance(lat, lon, station.Lat, station.Lon),
		ObservedAt:      station.Timestamp,
		PM25:            est.pm25,
		Category:        Classify(est.pm25),
		Attribution:     est.attribution,
		Recommendations: Recommend(est.attribution),
		Source:          est.source,
	}, nil
}

// Forecast produces one point per hour for hours 1..hours after the nearest
// station's observation time, extrapolating aerosol optical depth over a
// diurnal cycle.
func (s *Service) Forecast(ctx context.Context, lat, lon float64, hours int) (*Forecast, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: %d hours, expected a positive number", ErrInvalidHorizon, hours)
	}

	ctx, span := s.tracer.Start(ctx, "forecast.Forecast", trace.WithAttributes(
		attribute.Float64("query.lat", lat),
		attribute.Float64("query.lon", lon),
		attribute.Int("forecast.hours", hours),
	))
	defer span.End()

	station, err := s.nearest(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("station.id", station.StationID))

	base := FeaturesFrom(station)
	points := make([]Point, 0, hours)
	for h := 1; h <= hours; h++ {
		features := base.WithAOD(PerturbAOD(base.AOD(), h))
		est := s.resolve(ctx, features, station)
		s.recorder.RecordAssessment("forecast", est.source)

		points = append(points, Point{
			Hour:            h,
			Timestamp:       station.Timestamp.Add(time.Duration(h) * time.Hour),
			PM25:            est.pm25,
			Category:        Classify(est.pm25),
			Attribution:     est.attribution,
			Recommendations: Recommend(est.attribution),
			Source:          est.source,
		})
	}

	return &Forecast{
		StationID:  station.StationID,
		Lat:        station.Lat,
		Lon:        station.Lon,
		ObservedAt: station.Timestamp,
		Points:     points,
	}, nil
}

func (s *Service) nearest(ctx context.Context, lat, lon float64) (observation.Observation, error) {
	observations, err := s.observations.ListObservations(ctx)
	if err != nil {
		return observation.Observation{}, fmt.Errorf("list observations: %w", err)
	}
	return NearestStation(observations, lat, lon)
}

type estimate struct {
	pm25        float64
	attribution Attribution
	source      EstimateSource
}

// resolve predicts PM2.5 and attribution for the features, falling back to
// the station's observed values whenever the predictor cannot answer.
func (s *Service) resolve(ctx context.Context, features FeatureVector, station observation.Observation) estimate {
	observed := estimate{
		pm25:        station.PM25,
		attribution: ObservedAttribution(station),
		source:      SourceObserved,
	}

	if s.predictor == nil || !s.predictor.Available() {
		return observed
	}

	pm25, err := s.predictor.PredictPM25(ctx, features)
	if err == nil && (math.IsNaN(pm25) || math.IsInf(pm25, 0)) {
		err = fmt.Errorf("%w: non-finite pm25 %v", ErrMalformedPrediction, pm25)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("station_id", station.StationID).Msg("pm25 prediction failed, using observed values")
		return observed
	}

	raw, err := s.predictor.PredictAttribution(ctx, features)
	if err != nil {
		s.logger.Warn().Err(err).Str("station_id", station.StationID).Msg("attribution prediction failed, using observed values")
		return observed
	}

	attribution, degenerate := normalizeAttribution(raw)
	if degenerate {
		s.recorder.RecordAttributionFallback()
		s.logger.Debug().
			Floats64("raw", raw[:]).
			Str("station_id", station.StationID).
			Msg("degenerate attribution, using fallback distribution")
	}

	return estimate{
		pm25:        pm25,
		attribution: attribution,
		source:      SourceModel,
	}
}

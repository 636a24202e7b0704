package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/observability"
	"github.com/smogcast/smogcast/internal/observation"
	"github.com/smogcast/smogcast/internal/prediction"
	"github.com/smogcast/smogcast/internal/resilience"
)

// Components are the wired domain services.
type Components struct {
	Store        *Store
	Observations *observation.Service
	Predictor    forecast.Predictor
	Forecast     *forecast.Service
	Registry     *resilience.Registry
	Metrics      *observability.Metrics
}

// Close releases the observation store.
func (c *Components) Close() {
	c.Store.Close()
}

// Build opens the store, optionally seeds it, and wires the observation
// cache, predictor and forecast service.
func Build(ctx context.Context, cfg Config, metrics *observability.Metrics, clock clockwork.Clock, logger zerolog.Logger) (*Components, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Seed.Enabled {
		n, err := Seed(ctx, store.Repository, cfg.Seed, clock)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info().Int("observations", n).Msg("seeded synthetic observations")
	}

	observations := observation.NewService(observation.ServiceConfig{
		Source:          store.Repository,
		Logger:          logger.With().Str("component", "observations").Logger(),
		CacheTTL:        cfg.CacheTTL,
		StaleIfErrorTTL: cfg.StaleTTL,
		Clock:           clock,
		OnRefresh:       metrics.SetSnapshotStations,
	})

	registry := resilience.NewRegistryWithClock(clock)
	backend, err := NewPredictor(cfg, registry, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	predictor := prediction.NewInstrumented(backend, metrics)

	svc := forecast.NewService(forecast.ServiceConfig{
		Observations: observations,
		Predictor:    predictor,
		Logger:       logger.With().Str("component", "forecast").Logger(),
		Recorder:     metrics,
	})

	return &Components{
		Store:        store,
		Observations: observations,
		Predictor:    predictor,
		Forecast:     svc,
		Registry:     registry,
		Metrics:      metrics,
	}, nil
}

package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/prediction"
	"github.com/smogcast/smogcast/internal/prediction/linear"
	"github.com/smogcast/smogcast/internal/prediction/remote"
	"github.com/smogcast/smogcast/internal/resilience"
)

// NewPredictor builds the backend selected by cfg.ModelBackend. The remote
// backend registers its HTTP client with registry.
func NewPredictor(cfg Config, registry *resilience.Registry, logger zerolog.Logger) (forecast.Predictor, error) {
	logger = logger.With().Str("model_backend", cfg.ModelBackend).Logger()

	switch cfg.ModelBackend {
	case ModelRemote:
		logger.Info().Str("url", cfg.ModelServiceURL).Msg("using remote model service")
		return remote.NewClient(remote.ClientConfig{
			BaseURL:  cfg.ModelServiceURL,
			Timeout:  cfg.ModelTimeout,
			Registry: registry,
			Logger:   logger,
		}), nil

	case ModelLinear:
		if cfg.ModelPath == "" {
			logger.Info().Msg("using built-in linear model")
			return linear.New(linear.DefaultModel(), logger), nil
		}
		p := linear.NewFromFile(cfg.ModelPath, logger.With().Str("path", cfg.ModelPath).Logger())
		// A load failure is not fatal; the forecast service falls back to observed values.
		_ = p.Load()
		return p, nil

	case ModelNone:
		logger.Warn().Msg("prediction disabled; serving observed values")
		return prediction.Disabled{}, nil

	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
	}
}

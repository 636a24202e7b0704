// Package linear implements forecast.Predictor with linear regressors whose
// coefficients are read from a JSON file.
package linear

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/forecast"
)

// ErrNoModelPath is returned when a file-backed predictor has no path.
var ErrNoModelPath = errors.New("model path not configured")

// Regressor is one linear output: intercept + Σ coefficient·feature.
// Coefficients are keyed by forecast.FeatureNames; missing features weigh 0.
type Regressor struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// Model is the on-disk model format.
type Model struct {
	Version     string           `json:"version"`
	PM25        Regressor        `json:"pm25"`
	Attribution AttributionModel `json:"attribution"`
}

// AttributionModel holds one regressor per pollution source.
type AttributionModel struct {
	Stubble  Regressor `json:"stubble"`
	Traffic  Regressor `json:"traffic"`
	Industry Regressor `json:"industry"`
}

// DefaultModel returns coefficients matching the synthetic observation
// generator. Used when no model file is configured.
func DefaultModel() Model {
	return Model{
		Version: "synthetic-v1",
		PM25: Regressor{
			Intercept: 15,
			Coefficients: map[string]float64{
				"aod":            90,
				"hotspots":       1.8,
				"traffic_index":  70,
				"industry_index": 60,
				"wind_speed":     -6,
			},
		},
		Attribution: AttributionModel{
			Stubble:  Regressor{Intercept: 0.05, Coefficients: map[string]float64{"hotspots": 0.03}},
			Traffic:  Regressor{Intercept: 0.05, Coefficients: map[string]float64{"traffic_index": 1}},
			Industry: Regressor{Intercept: 0.05, Coefficients: map[string]float64{"industry_index": 0.8}},
		},
	}
}

type weights struct {
	intercept float64
	coef      forecast.FeatureVector
}

func (w weights) apply(features forecast.FeatureVector) float64 {
	v := w.intercept
	for i, c := range w.coef {
		v += c * features[i]
	}
	return v
}

func compile(r Regressor) (weights, error) {
	w := weights{intercept: r.Intercept}
	for name, c := range r.Coefficients {
		i, ok := featureIndex(name)
		if !ok {
			return weights{}, fmt.Errorf("unknown feature %q", name)
		}
		w.coef[i] = c
	}
	return w, nil
}

func featureIndex(name string) (int, bool) {
	for i, n := range forecast.FeatureNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

type compiled struct {
	version     string
	pm25        weights
	attribution [3]weights
}

func compileModel(m Model) (*compiled, error) {
	c := &compiled{version: m.Version}

	var err error
	if c.pm25, err = compile(m.PM25); err != nil {
		return nil, fmt.Errorf("pm25 regressor: %w", err)
	}
	sources := [3]struct {
		name string
		r    Regressor
	}{
		{"stubble", m.Attribution.Stubble},
		{"traffic", m.Attribution.Traffic},
		{"industry", m.Attribution.Industry},
	}
	for i, s := range sources {
		if c.attribution[i], err = compile(s.r); err != nil {
			return nil, fmt.Errorf("%s regressor: %w", s.name, err)
		}
	}
	return c, nil
}

// Predictor evaluates a Model. A file-backed predictor reads its model at
// most once, on first use; a failed load leaves it permanently unavailable.
type Predictor struct {
	load   func() (Model, error)
	logger zerolog.Logger

	once  sync.Once
	model *compiled
	err   error
}

// NewFromFile creates a predictor that loads its model from path on first use.
func NewFromFile(path string, logger zerolog.Logger) *Predictor {
	return &Predictor{
		logger: logger,
		load: func() (Model, error) {
			if path == "" {
				return Model{}, ErrNoModelPath
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return Model{}, fmt.Errorf("read model file: %w", err)
			}
			var m Model
			if err := json.Unmarshal(data, &m); err != nil {
				return Model{}, fmt.Errorf("decode model file %s: %w", path, err)
			}
			return m, nil
		},
	}
}

// New creates a predictor for an in-memory model.
func New(m Model, logger zerolog.Logger) *Predictor {
	return &Predictor{
		logger: logger,
		load:   func() (Model, error) { return m, nil },
	}
}

// Load loads the model if it has not been loaded yet and returns the load error, if any.
func (p *Predictor) Load() error {
	p.once.Do(func() {
		m, err := p.load()
		if err == nil {
			p.model, err = compileModel(m)
		}
		if err != nil {
			p.err = err
			p.logger.Error().Err(err).Msg("linear model unavailable")
			return
		}
		p.logger.Info().Str("version", p.model.version).Msg("linear model loaded")
	})
	return p.err
}

// Version returns the loaded model version, or "" before a successful load.
func (p *Predictor) Version() string {
	if p.Load() != nil {
		return ""
	}
	return p.model.version
}

// Available reports whether the model loaded.
func (p *Predictor) Available() bool {
	return p.Load() == nil
}

// PredictPM25 evaluates the PM2.5 regressor.
func (p *Predictor) PredictPM25(_ context.Context, features forecast.FeatureVector) (float64, error) {
	if err := p.Load(); err != nil {
		return 0, fmt.Errorf("%w: %w", forecast.ErrPredictionUnavailable, err)
	}
	return p.model.pm25.apply(features), nil
}

// PredictAttribution evaluates the stubble, traffic and industry regressors.
// Outputs are raw and may be negative.
func (p *Predictor) PredictAttribution(_ context.Context, features forecast.FeatureVector) ([3]float64, error) {
	if err := p.Load(); err != nil {
		return [3]float64{}, fmt.Errorf("%w: %w", forecast.ErrPredictionUnavailable, err)
	}
	var out [3]float64
	for i, w := range p.model.attribution {
		out[i] = w.apply(features)
	}
	return out, nil
}

var _ forecast.Predictor = (*Predictor)(nil)

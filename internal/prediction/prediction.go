// Package prediction provides the PM2.5 and source-attribution model
// backends behind forecast.Predictor.
package prediction

import (
	"context"
	"errors"

	"github.com/smogcast/smogcast/internal/forecast"
)

// Prediction kinds.
const (
	KindPM25        = "pm25"
	KindAttribution = "attribution"
)

// Prediction outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeMalformed   = "malformed"
	OutcomeError       = "error"
)

// Disabled is a predictor with no models. The forecast service always falls
// back to observed values with it.
type Disabled struct{}

// Available always reports false.
func (Disabled) Available() bool { return false }

// PredictPM25 always fails with forecast.ErrPredictionUnavailable.
func (Disabled) PredictPM25(context.Context, forecast.FeatureVector) (float64, error) {
	return 0, forecast.ErrPredictionUnavailable
}

// PredictAttribution always fails with forecast.ErrPredictionUnavailable.
func (Disabled) PredictAttribution(context.Context, forecast.FeatureVector) ([3]float64, error) {
	return [3]float64{}, forecast.ErrPredictionUnavailable
}

// Recorder counts prediction outcomes by kind.
type Recorder interface {
	RecordPrediction(kind, outcome string)
}

// Instrumented decorates a predictor with outcome counting.
type Instrumented struct {
	next     forecast.Predictor
	recorder Recorder
}

// NewInstrumented wraps next so every prediction is counted in recorder.
func NewInstrumented(next forecast.Predictor, recorder Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder}
}

// Available delegates to the wrapped predictor.
func (p *Instrumented) Available() bool {
	return p.next.Available()
}

// PredictPM25 delegates to the wrapped predictor and records the outcome.
func (p *Instrumented) PredictPM25(ctx context.Context, features forecast.FeatureVector) (float64, error) {
	v, err := p.next.PredictPM25(ctx, features)
	p.recorder.RecordPrediction(KindPM25, Outcome(err))
	return v, err
}

// PredictAttribution delegates to the wrapped predictor and records the outcome.
func (p *Instrumented) PredictAttribution(ctx context.Context, features forecast.FeatureVector) ([3]float64, error) {
	v, err := p.next.PredictAttribution(ctx, features)
	p.recorder.RecordPrediction(KindAttribution, Outcome(err))
	return v, err
}

// Outcome classifies a prediction error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, forecast.ErrPredictionUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, forecast.ErrMalformedPrediction):
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}

var (
	_ forecast.Predictor = Disabled{}
	_ forecast.Predictor = (*Instrumented)(nil)
)

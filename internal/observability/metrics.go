// Package observability holds the Prometheus metrics exported on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smogcast/smogcast/internal/forecast"
)

const namespace = "smogcast"

// Metrics holds the Prometheus counters, histograms and gauges for the service.
type Metrics struct {
	Predictions         *prometheus.CounterVec // labels: kind={pm25,attribution}, outcome={ok,unavailable,malformed,error}
	AttributionFallback prometheus.Counter
	Assessments         *prometheus.CounterVec // labels: operation={assess,forecast,...}, source={model,observed}
	SnapshotStations    prometheus.Gauge

	// Worker metrics.
	WorkerRuns        *prometheus.CounterVec // labels: job, outcome={success,partial,failure}
	WorkerRunDuration *prometheus.HistogramVec
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Model predictions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AttributionFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attribution_fallback_total",
			Help:      "Predicted attributions replaced by the uniform fallback distribution.",
		}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Resolved assessments and forecast points by operation and estimate source.",
		}, []string{"operation", "source"}),
		SnapshotStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observation_snapshot_stations",
			Help:      "Distinct stations in the current observation snapshot.",
		}),
		WorkerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_runs_total",
			Help:      "Background job runs by job type and outcome.",
		}, []string{"job", "outcome"}),
		WorkerRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_run_duration_seconds",
			Help:      "Background job run duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
	}
}

// NewMetrics creates metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.Predictions,
		m.AttributionFallback,
		m.Assessments,
		m.SnapshotStations,
		m.WorkerRuns,
		m.WorkerRunDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// RecordPrediction counts a model call.
func (m *Metrics) RecordPrediction(kind, outcome string) {
	m.Predictions.WithLabelValues(kind, outcome).Inc()
}

// RecordAssessment counts one resolved assessment or forecast point.
func (m *Metrics) RecordAssessment(operation string, source forecast.EstimateSource) {
	m.Assessments.WithLabelValues(operation, string(source)).Inc()
}

// RecordAttributionFallback counts a degenerate attribution.
func (m *Metrics) RecordAttributionFallback() {
	m.AttributionFallback.Inc()
}

// SetSnapshotStations sets the station gauge. Matches observation.ServiceConfig.OnRefresh.
func (m *Metrics) SetSnapshotStations(stations int) {
	m.SnapshotStations.Set(float64(stations))
}

// RecordWorkerRun counts a job run and observes its duration.
func (m *Metrics) RecordWorkerRun(job, outcome string, seconds float64) {
	m.WorkerRuns.WithLabelValues(job, outcome).Inc()
	m.WorkerRunDuration.WithLabelValues(job).Observe(seconds)
}

var _ forecast.Recorder = (*Metrics)(nil)

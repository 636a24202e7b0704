package observability_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/observability"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	default:
		t.Fatalf("unsupported metric type")
		return 0
	}
}

func TestMetrics_Record(t *testing.T) {
	m := observability.NewMetricsForTesting()

	m.RecordPrediction("pm25", "ok")
	m.RecordPrediction("pm25", "ok")
	m.RecordPrediction("attribution", "malformed")
	m.RecordAssessment("forecast", forecast.SourceModel)
	m.RecordAttributionFallback()
	m.SetSnapshotStations(6)
	m.RecordWorkerRun("assessment_refresh", "success", 0.2)

	assert.Equal(t, 2.0, value(t, m.Predictions.WithLabelValues("pm25", "ok")))
	assert.Equal(t, 1.0, value(t, m.Predictions.WithLabelValues("attribution", "malformed")))
	assert.Equal(t, 1.0, value(t, m.Assessments.WithLabelValues("forecast", "model")))
	assert.Equal(t, 1.0, value(t, m.AttributionFallback))
	assert.Equal(t, 6.0, value(t, m.SnapshotStations))
	assert.Equal(t, 1.0, value(t, m.WorkerRuns.WithLabelValues("assessment_refresh", "success")))
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.SetSnapshotStations(3)
	m.RecordPrediction("pm25", "ok")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["smogcast_observation_snapshot_stations"])
	assert.True(t, names["smogcast_predictions_total"])

	assert.Panics(t, func() { observability.NewMetrics(reg) })
}

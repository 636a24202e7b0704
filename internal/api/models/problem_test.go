package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/forecast"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_abc").
		WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/aqi")

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_abc", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/aqi", p.Instance)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_abc", "invalid query", []models.FieldError{
		{Field: "lat", Message: "lat is required", Code: models.CodeRequired},
	})

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_abc", rec.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req_abc", body["traceId"])
	assert.Equal(t, float64(400), body["status"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		problem *models.Problem
		status  int
		typ     string
	}{
		{models.NewNotFound("t", "d"), http.StatusNotFound, models.ProblemTypeNotFound},
		{models.NewTooManyRequests("t", "d"), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{models.NewInternalError("t", "d"), http.StatusInternalServerError, models.ProblemTypeInternal},
		{models.NewServiceUnavailable("t", "d"), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.problem.Status)
		assert.Equal(t, tt.typ, tt.problem.Type)
		assert.Equal(t, "d", tt.problem.Detail)
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := models.Timestamp(time.Date(2025, 11, 3, 13, 30, 0, 500, ist))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-11-03T08:00:00Z"`, string(data))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Time().Equal(time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)))

	assert.Nil(t, models.TimestampPtr(time.Time{}))
	assert.NotNil(t, models.TimestampPtr(ts.Time()))
}

func TestAssessmentFrom(t *testing.T) {
	observed := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	a := &forecast.Assessment{
		Lat:            28.61,
		Lon:            77.21,
		StationID:      "DEL-01",
		DistanceMeters: 1200,
		ObservedAt:     observed,
		PM25:           180,
		Category:       forecast.CategoryUnhealthy,
		Attribution:    forecast.Attribution{StubbleFrac: 0.5, TrafficFrac: 0.3, IndustryFrac: 0.2},
		Source:         forecast.SourceModel,
	}

	data, err := json.Marshal(models.AssessmentFrom(a))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "DEL-01", body["station_id"])
	assert.Equal(t, float64(1200), body["distance_m"])
	assert.Equal(t, "2025-11-03T08:00:00Z", body["observed_at"])
	assert.Equal(t, "Unhealthy", body["aqi_category"])
	assert.Equal(t, "model", body["prediction_source"])
	assert.Equal(t, []any{}, body["policy_recommendations"], "nil recommendations encode as an empty array")

	contrib, ok := body["source_contribution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.5, contrib["stubble_frac"])
	assert.Equal(t, 0.3, contrib["traffic_frac"])
	assert.Equal(t, 0.2, contrib["industry_frac"])
}

func TestForecastFrom(t *testing.T) {
	observed := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	f := &forecast.Forecast{
		StationID:  "MUM-01",
		ObservedAt: observed,
		Points: []forecast.Point{
			{Hour: 1, Timestamp: observed.Add(time.Hour), PM25: 40, Category: forecast.CategoryGood, Source: forecast.SourceObserved, Recommendations: []string{"x"}},
			{Hour: 2, Timestamp: observed.Add(2 * time.Hour), PM25: 60, Category: forecast.CategoryModerate, Source: forecast.SourceObserved},
		},
	}

	out := models.ForecastFrom(f)

	require.Len(t, out.Forecasts, 2)
	assert.Equal(t, "MUM-01", out.StationID)
	assert.Equal(t, 2, out.Forecasts[1].Hour)
	assert.Equal(t, "Moderate", out.Forecasts[1].AQICategory)
	assert.Equal(t, observed.Add(2*time.Hour), out.Forecasts[1].Timestamp.Time())
	assert.Equal(t, []string{"x"}, out.Forecasts[0].PolicyRecommendations)
	assert.NotNil(t, out.Forecasts[1].PolicyRecommendations)
}

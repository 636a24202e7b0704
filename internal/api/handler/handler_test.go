package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/api/handler"
	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/observation"
	"github.com/smogcast/smogcast/internal/resilience"
)

var now = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

type fakeForecaster struct {
	err      error
	gotLat   float64
	gotLon   float64
	gotHours int
}

func (f *fakeForecaster) Assess(_ context.Context, lat, lon float64) (*forecast.Assessment, error) {
	f.gotLat, f.gotLon = lat, lon
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.Assessment{
		Lat: 28.61, Lon: 77.21, StationID: "DEL-01", DistanceMeters: 120,
		ObservedAt: now, PM25: 42, Category: forecast.CategoryGood,
		Attribution: forecast.FallbackAttribution,
		Source:      forecast.SourceObserved,
	}, nil
}

func (f *fakeForecaster) Forecast(_ context.Context, lat, lon float64, hours int) (*forecast.Forecast, error) {
	f.gotLat, f.gotLon, f.gotHours = lat, lon, hours
	if f.err != nil {
		return nil, f.err
	}
	out := &forecast.Forecast{StationID: "DEL-01", ObservedAt: now}
	for h := 1; h <= hours; h++ {
		out.Points = append(out.Points, forecast.Point{Hour: h, Timestamp: now.Add(time.Duration(h) * time.Hour)})
	}
	return out, nil
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestGetAQI(t *testing.T) {
	f := &fakeForecaster{}
	h := handler.NewAssessmentHandler(f, 0, zerolog.Nop())

	rec := serve(h.GetAQI, "/v1/aqi?lat=28.6139&lon=%2077.209")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 28.6139, f.gotLat)
	assert.Equal(t, 77.209, f.gotLon)
	assert.JSONEq(t, `{
		"lat": 28.61, "lon": 77.21, "station_id": "DEL-01", "distance_m": 120,
		"observed_at": "2025-11-03T09:00:00Z", "pm25": 42, "aqi_category": "Good",
		"source_contribution": {"stubble_frac": 0.33, "traffic_frac": 0.33, "industry_frac": 0.34},
		"policy_recommendations": [], "prediction_source": "observed"
	}`, rec.Body.String())
}

func TestGetAQI_ParameterErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []models.FieldError
	}{
		{
			name:  "missing",
			query: "",
			want: []models.FieldError{
				{Field: "lat", Message: "lat is required", Code: models.CodeRequired},
				{Field: "lon", Message: "lon is required", Code: models.CodeRequired},
			},
		},
		{
			name:  "not a number",
			query: "lat=north&lon=1",
			want:  []models.FieldError{{Field: "lat", Message: "lat must be a number", Code: models.CodeInvalid}},
		},
		{
			name:  "infinite",
			query: "lat=1&lon=Inf",
			want:  []models.FieldError{{Field: "lon", Message: "lon must be a number", Code: models.CodeInvalid}},
		},
		{
			name:  "out of range",
			query: "lat=91&lon=-181",
			want: []models.FieldError{
				{Field: "lat", Message: "lat must be between -90 and 90", Code: models.CodeOutOfRange},
				{Field: "lon", Message: "lon must be between -180 and 180", Code: models.CodeOutOfRange},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewAssessmentHandler(&fakeForecaster{}, 0, zerolog.Nop())
			rec := serve(h.GetAQI, "/v1/aqi?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			assert.Equal(t, "/v1/aqi", p.Instance)
			assert.Equal(t, tt.want, p.Errors)
		})
	}
}

func TestGetAQI_BoundaryCoordinates(t *testing.T) {
	h := handler.NewAssessmentHandler(&fakeForecaster{}, 0, zerolog.Nop())

	for _, q := range []string{"lat=90&lon=180", "lat=-90&lon=-180", "lat=0&lon=0"} {
		assert.Equal(t, http.StatusOK, serve(h.GetAQI, "/v1/aqi?"+q).Code, q)
	}
}

func TestAssessmentErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"no stations", fmt.Errorf("nearest: %w", forecast.ErrNoStationsAvailable), http.StatusNotFound, models.ProblemTypeNotFound},
		{"store down", fmt.Errorf("list observations: %w", observation.ErrStoreUnavailable), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"horizon", fmt.Errorf("%w: 500 hours", forecast.ErrInvalidHorizon), http.StatusBadRequest, models.ProblemTypeValidation},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewAssessmentHandler(&fakeForecaster{err: tt.err}, 0, zerolog.Nop())

			endpoints := map[string]http.HandlerFunc{
				"/v1/aqi?lat=1&lon=1":      h.GetAQI,
				"/v1/forecast?lat=1&lon=1": h.GetForecast,
			}
			for target, fn := range endpoints {
				rec := serve(fn, target)
				assert.Equal(t, tt.status, rec.Code, target)
				p := decodeProblem(t, rec)
				assert.Equal(t, tt.typ, p.Type, target)
				assert.NotContains(t, p.Detail, "boom")
			}
		})
	}
}

func TestGetForecast_Hours(t *testing.T) {
	tests := []struct {
		query     string
		maxHours  int
		wantHours int
		wantCode  int
	}{
		{"", 0, forecast.DefaultHorizonHours, http.StatusOK},
		{"&hours=1", 0, 1, http.StatusOK},
		{"&hours=168", 0, 168, http.StatusOK},
		{"&hours=169", 0, 0, http.StatusBadRequest},
		{"&hours=0", 0, 0, http.StatusBadRequest},
		{"&hours=-1", 0, 0, http.StatusBadRequest},
		{"&hours=abc", 0, 0, http.StatusBadRequest},
		{"&hours=12", 6, 0, http.StatusBadRequest},
		{"&hours=500", 720, 500, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run("hours"+tt.query, func(t *testing.T) {
			f := &fakeForecaster{}
			h := handler.NewAssessmentHandler(f, tt.maxHours, zerolog.Nop())

			rec := serve(h.GetForecast, "/v1/forecast?lat=28.6&lon=77.2"+tt.query)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				p := decodeProblem(t, rec)
				require.Len(t, p.Errors, 1)
				assert.Equal(t, "hours", p.Errors[0].Field)
				assert.Zero(t, f.gotHours, "forecaster must not be called")
				return
			}

			assert.Equal(t, tt.wantHours, f.gotHours)
			var body models.Forecast
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Forecasts, tt.wantHours)
		})
	}
}

func TestGetForecast_CombinesErrors(t *testing.T) {
	h := handler.NewAssessmentHandler(&fakeForecaster{}, 0, zerolog.Nop())

	rec := serve(h.GetForecast, "/v1/forecast?lon=500&hours=0")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	fields := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"lat", "lon", "hours"}, fields)
}

type staticSource struct {
	observations []observation.Observation
	err          error
}

func (s staticSource) ListObservations(context.Context) ([]observation.Observation, error) {
	return s.observations, s.err
}

func TestListStations(t *testing.T) {
	src := staticSource{observations: []observation.Observation{
		{StationID: "KOL-01", Lat: 22.57, Lon: 88.36, Timestamp: now.Add(-time.Hour), PM25: 80},
		{StationID: "DEL-01", Lat: 28.61, Lon: 77.21, Timestamp: now.Add(-time.Hour), PM25: 150},
		{StationID: "KOL-01", Lat: 22.57, Lon: 88.36, Timestamp: now, PM25: 95},
	}}
	h := handler.NewStationHandler(src, zerolog.Nop())

	rec := serve(h.ListStations, "/v1/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 2, "items": [
		{"station_id": "DEL-01", "lat": 28.61, "lon": 77.21, "observed_at": "2025-11-03T08:00:00Z", "pm25": 150},
		{"station_id": "KOL-01", "lat": 22.57, "lon": 88.36, "observed_at": "2025-11-03T09:00:00Z", "pm25": 95}
	]}`, rec.Body.String())
}

func TestListStations_Errors(t *testing.T) {
	unavailable := handler.NewStationHandler(staticSource{err: fmt.Errorf("%w: timeout", observation.ErrStoreUnavailable)}, zerolog.Nop())
	assert.Equal(t, http.StatusServiceUnavailable, serve(unavailable.ListStations, "/v1/stations").Code)

	broken := handler.NewStationHandler(staticSource{err: errors.New("decode row")}, zerolog.Nop())
	assert.Equal(t, http.StatusInternalServerError, serve(broken.ListStations, "/v1/stations").Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeSnapshot struct{ status observation.CacheStatus }

func (s fakeSnapshot) CacheStatus() observation.CacheStatus { return s.status }

type fakeModel bool

func (m fakeModel) Available() bool { return bool(m) }

type fakeBackend struct {
	name  string
	state gobreaker.State
}

func (b fakeBackend) Name() string                    { return b.name }
func (b fakeBackend) BreakerState() gobreaker.State   { return b.state }
func (b fakeBackend) BreakerCounts() gobreaker.Counts { return gobreaker.Counts{ConsecutiveFailures: 2} }

func newOps(store error, model bool, snapshot observation.CacheStatus, backends ...fakeBackend) *handler.OpsHandler {
	clock := clockwork.NewFakeClockAt(now)
	registry := resilience.NewRegistryWithClock(clock)
	for _, b := range backends {
		registry.Register(b)
	}
	return handler.NewOpsHandler(handler.OpsConfig{
		Version:   "1.2.3",
		BuildTime: "2025-11-01T00:00:00Z",
		Store:     fakePinger{err: store},
		Snapshot:  fakeSnapshot{status: snapshot},
		Model:     fakeModel(model),
		Registry:  registry,
		Logger:    zerolog.Nop(),
		Clock:     clock,
	})
}

func TestHealthCheck(t *testing.T) {
	rec := serve(newOps(nil, true, observation.CacheStatus{}).HealthCheck, "/v1/ops/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status": "OK", "time": "2025-11-03T09:00:00Z",
		"details": {"version": "1.2.3", "buildTime": "2025-11-01T00:00:00Z"}
	}`, rec.Body.String())
}

func TestReadinessCheck(t *testing.T) {
	ready := serve(newOps(nil, true, observation.CacheStatus{}).ReadinessCheck, "/v1/ops/ready")
	assert.Equal(t, http.StatusOK, ready.Code)

	down := serve(newOps(errors.New("dial tcp: refused"), true, observation.CacheStatus{}).ReadinessCheck, "/v1/ops/ready")
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	assert.Contains(t, down.Body.String(), "dial tcp: refused")
}

func TestSystemStatus(t *testing.T) {
	fresh := observation.CacheStatus{HasData: true, ObservationCount: 12, StationCount: 4, FetchedAt: now, ExpiresAt: now.Add(time.Minute)}
	stale := fresh
	stale.IsStale = true

	tests := []struct {
		name     string
		store    error
		model    bool
		snapshot observation.CacheStatus
		backends []fakeBackend
		want     models.HealthStatus
	}{
		{"healthy", nil, true, fresh, []fakeBackend{{"ml-service", gobreaker.StateClosed}}, models.HealthStatusOK},
		{"store down", errors.New("refused"), true, fresh, nil, models.HealthStatusFail},
		{"model unavailable", nil, false, fresh, nil, models.HealthStatusDegraded},
		{"stale snapshot", nil, true, stale, nil, models.HealthStatusDegraded},
		{"circuit open", nil, true, fresh, []fakeBackend{{"ml-service", gobreaker.StateOpen}}, models.HealthStatusDegraded},
		{"empty snapshot", nil, true, observation.CacheStatus{}, nil, models.HealthStatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newOps(tt.store, tt.model, tt.snapshot, tt.backends...).SystemStatus, "/v1/ops/status")
			require.Equal(t, http.StatusOK, rec.Code)

			var status models.SystemStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.want, status.Status)
			assert.Len(t, status.Subsystems, 2)
			assert.Len(t, status.Backends, len(tt.backends))
			assert.Equal(t, tt.snapshot.HasData, status.Snapshot.HasData)
		})
	}
}

type versionedModel string

func (versionedModel) Available() bool   { return true }
func (m versionedModel) Version() string { return string(m) }

func TestSystemStatus_ModelVersion(t *testing.T) {
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Store:  fakePinger{},
		Model:  versionedModel("pm25-2025.11"),
		Logger: zerolog.Nop(),
		Clock:  clockwork.NewFakeClockAt(now),
	})

	rec := serve(ops.SystemStatus, "/v1/ops/status")

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Subsystems, 2)
	assert.Equal(t, models.HealthStatusOK, status.Subsystems[1].Status)
	assert.Equal(t, "version pm25-2025.11", status.Subsystems[1].Detail)
}

func TestSystemStatus_BackendDetails(t *testing.T) {
	ops := newOps(nil, true, observation.CacheStatus{}, fakeBackend{"ml-service", gobreaker.StateHalfOpen})

	rec := serve(ops.SystemStatus, "/v1/ops/status")

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Backends, 1)
	b := status.Backends[0]
	assert.Equal(t, "ml-service", b.Name)
	assert.Equal(t, models.HealthStatusDegraded, b.Status)
	assert.Equal(t, "half-open", b.CircuitState)
	assert.Equal(t, uint32(2), b.ConsecutiveFailures)
	assert.Nil(t, b.LastSuccessAt)
}

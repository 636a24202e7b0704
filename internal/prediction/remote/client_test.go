package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/prediction/remote"
	"github.com/smogcast/smogcast/internal/resilience"
)

var features = forecast.FeatureVector{0.9, 12, 0.7, 0.3, 28, 45, 1.8}

type modelService struct {
	healthStatus    int
	healthDelay     time.Duration
	pm25Body        string
	attributionBody string
	healthCalls     atomic.Int32
	lastRequest     atomic.Value
}

func (m *modelService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		m.healthCalls.Add(1)
		time.Sleep(m.healthDelay)
		w.WriteHeader(m.healthStatus)
	})
	mux.HandleFunc("POST /predict/pm25", func(w http.ResponseWriter, r *http.Request) {
		m.capture(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(m.pm25Body))
	})
	mux.HandleFunc("POST /predict/attribution", func(w http.ResponseWriter, r *http.Request) {
		m.capture(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(m.attributionBody))
	})
	return mux
}

func (m *modelService) capture(t *testing.T, r *http.Request) {
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	m.lastRequest.Store(body)
}

func newTestClient(t *testing.T, svc *modelService, clock clockwork.Clock) *remote.Client {
	server := httptest.NewServer(svc.handler(t))
	t.Cleanup(server.Close)

	return remote.NewClient(remote.ClientConfig{
		BaseURL:    server.URL + "/",
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
		Clock:      clock,
		HealthTTL:  time.Minute,
	})
}

func TestClient_Predict(t *testing.T) {
	svc := &modelService{
		healthStatus:    http.StatusOK,
		pm25Body:        `{"pm25": 142.5}`,
		attributionBody: `{"attribution": [0.5, -0.1, 0.7]}`,
	}
	client := newTestClient(t, svc, clockwork.NewFakeClock())

	pm25, err := client.PredictPM25(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, 142.5, pm25)

	body := svc.lastRequest.Load().(map[string]any)
	assert.Equal(t, []any{"aod", "hotspots", "traffic_index", "industry_index", "temp_c", "rh", "wind_speed"},
		body["feature_names"])
	assert.Equal(t, []any{0.9, 12.0, 0.7, 0.3, 28.0, 45.0, 1.8}, body["features"])

	raw, err := client.PredictAttribution(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.5, -0.1, 0.7}, raw)
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name            string
		pm25Body        string
		attributionBody string
	}{
		{name: "wrong arity", pm25Body: `{"pm25": 1}`, attributionBody: `{"attribution": [0.5, 0.5]}`},
		{name: "missing fields", pm25Body: `{}`, attributionBody: `{}`},
		{name: "not json", pm25Body: `<html>`, attributionBody: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &modelService{healthStatus: http.StatusOK, pm25Body: tt.pm25Body, attributionBody: tt.attributionBody}
			client := newTestClient(t, svc, clockwork.NewFakeClock())

			_, err := client.PredictAttribution(context.Background(), features)
			assert.ErrorIs(t, err, forecast.ErrMalformedPrediction)

			if tt.pm25Body != `{"pm25": 1}` {
				_, err = client.PredictPM25(context.Background(), features)
				assert.ErrorIs(t, err, forecast.ErrMalformedPrediction)
			}
		})
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	rc := resilience.DefaultClientConfig(remote.BackendName)
	rc.Retries = 0
	rc.Registry = registry

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(rc),
		Logger:     zerolog.Nop(),
	})

	_, err := client.PredictPM25(context.Background(), features)
	assert.ErrorIs(t, err, forecast.ErrPredictionUnavailable)
	assert.False(t, client.Available())

	health, ok := registry.Health(remote.BackendName)
	require.True(t, ok)
	assert.NotEmpty(t, health.LastError)
}

func TestClient_AvailableCachesHealth(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := &modelService{healthStatus: http.StatusOK}
	client := newTestClient(t, svc, clock)

	assert.True(t, client.Available())
	assert.True(t, client.Available())
	assert.Equal(t, int32(1), svc.healthCalls.Load())

	clock.Advance(2 * time.Minute)
	assert.True(t, client.Available())
	assert.Equal(t, int32(2), svc.healthCalls.Load())
}

func TestClient_AvailableConcurrentCallersShareHealthCheck(t *testing.T) {
	const (
		callers = 8
		delay   = 200 * time.Millisecond
	)
	svc := &modelService{healthStatus: http.StatusOK, healthDelay: delay}
	server := httptest.NewServer(svc.handler(t))
	t.Cleanup(server.Close)

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
		HealthTTL:  time.Nanosecond,
	})

	var (
		wg      sync.WaitGroup
		healthy atomic.Int32
	)
	start := time.Now()
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if client.Available() {
				healthy.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, int32(callers), healthy.Load())
	assert.Less(t, elapsed, callers*delay/2, "health checks ran one after another")
	assert.Less(t, svc.healthCalls.Load(), int32(callers))
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:    url,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	assert.False(t, client.Available())
	_, err := client.PredictAttribution(context.Background(), features)
	assert.ErrorIs(t, err, forecast.ErrPredictionUnavailable)
}

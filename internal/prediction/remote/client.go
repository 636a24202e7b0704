// Package remote provides a forecast.Predictor backed by an external
// model-serving HTTP service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/resilience"
)

// BackendName identifies the model service in the resilience registry.
const BackendName = "model-service"

// ClientConfig holds configuration for the model service client.
type ClientConfig struct {
	// BaseURL of the model service, e.g. http://localhost:8000.
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual requests (default: 5s).
	Timeout time.Duration

	// Registry tracks the default client's health. Optional.
	Registry *resilience.Registry

	// HealthTTL is how long a health check result is trusted (default: 30s).
	HealthTTL time.Duration

	Logger zerolog.Logger
	Clock  clockwork.Clock
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the model service.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	timeout    time.Duration
	healthTTL  time.Duration
	logger     zerolog.Logger
	clock      clockwork.Clock

	healthGroup singleflight.Group

	mu        sync.Mutex
	healthy   bool
	checkedAt time.Time
}

// NewClient creates a model service client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(BackendName)
		rc.Timeout = timeout
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	healthTTL := cfg.HealthTTL
	if healthTTL == 0 {
		healthTTL = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		healthTTL:  healthTTL,
		logger:     cfg.Logger,
		clock:      clock,
	}
}

// Wire types.

type predictRequest struct {
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

type pm25Response struct {
	PM25 *float64 `json:"pm25"`
}

type attributionResponse struct {
	Attribution []float64 `json:"attribution"`
}

// Available reports whether GET /health succeeded within the last HealthTTL.
// Concurrent callers with a stale result share a single health request, and
// no lock is held while it runs.
func (c *Client) Available() bool {
	c.mu.Lock()
	healthy, checkedAt := c.healthy, c.checkedAt
	c.mu.Unlock()

	if !checkedAt.IsZero() && c.clock.Since(checkedAt) < c.healthTTL {
		return healthy
	}

	v, _, _ := c.healthGroup.Do("health", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := c.Health(ctx)
		now := c.clock.Now()

		c.mu.Lock()
		wasHealthy := c.healthy
		c.healthy = err == nil
		c.checkedAt = now
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn().Err(err).Msg("model service health check failed")
		} else if !wasHealthy {
			c.logger.Info().Str("url", c.baseURL).Msg("model service available")
		}
		return err == nil, nil
	})
	return v.(bool)
}

// Health checks model service connectivity.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// PredictPM25 calls POST /predict/pm25.
func (c *Client) PredictPM25(ctx context.Context, features forecast.FeatureVector) (float64, error) {
	var out pm25Response
	if err := c.post(ctx, "/predict/pm25", features, &out); err != nil {
		return 0, err
	}
	if out.PM25 == nil {
		return 0, fmt.Errorf("%w: missing pm25", forecast.ErrMalformedPrediction)
	}
	if math.IsNaN(*out.PM25) || math.IsInf(*out.PM25, 0) {
		return 0, fmt.Errorf("%w: non-finite pm25", forecast.ErrMalformedPrediction)
	}
	return *out.PM25, nil
}

// PredictAttribution calls POST /predict/attribution. The response must
// carry exactly three values: stubble, traffic, industry.
func (c *Client) PredictAttribution(ctx context.Context, features forecast.FeatureVector) ([3]float64, error) {
	var out attributionResponse
	if err := c.post(ctx, "/predict/attribution", features, &out); err != nil {
		return [3]float64{}, err
	}
	if len(out.Attribution) != 3 {
		return [3]float64{}, fmt.Errorf("%w: expected 3 attribution values, got %d",
			forecast.ErrMalformedPrediction, len(out.Attribution))
	}
	return [3]float64{out.Attribution[0], out.Attribution[1], out.Attribution[2]}, nil
}

func (c *Client) post(ctx context.Context, path string, features forecast.FeatureVector, out any) error {
	body, err := json.Marshal(predictRequest{
		FeatureNames: forecast.FeatureNames[:],
		Features:     features[:],
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			c.markUnhealthy()
		}
		return fmt.Errorf("%w: %s: %w", forecast.ErrPredictionUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned status %d", forecast.ErrPredictionUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", forecast.ErrMalformedPrediction, path, err)
	}
	return nil
}

// markUnhealthy forces the next Available call to recheck health.
func (c *Client) markUnhealthy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = false
	c.checkedAt = time.Time{}
}

var _ forecast.Predictor = (*Client)(nil)

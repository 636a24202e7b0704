package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling the backend while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// StatusError is a 5xx response from a backend.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the backend.
	Name string

	// Timeout bounds each individual attempt (default: 5s).
	Timeout time.Duration

	// Retries after the first attempt. Zero disables retrying.
	Retries uint64

	// InitialInterval and MaxInterval bound the exponential backoff
	// (defaults: 100ms and 2s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker configures the circuit breaker. Defaults to DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, tracks this client's health.
	Registry *Registry
}

// DefaultClientConfig returns the client settings used for model backends.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         5 * time.Second,
		Retries:         2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes HTTP requests through a circuit breaker, retrying network
// errors and 5xx responses with exponential backoff. 4xx responses are
// returned to the caller untouched.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	cfg        ClientConfig
}

// NewClient creates a resilient client and registers it when a Registry is configured.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
		if breakerCfg.Name == "" {
			breakerCfg.Name = cfg.Name
		}
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		registry:   cfg.Registry,
		cfg:        cfg,
	}

	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.name
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the circuit breaker's request counts.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do executes req. Request bodies are replayed on retry through req.GetBody,
// which http.NewRequest sets for in-memory readers. When retries are
// exhausted on 5xx responses the last response is returned with a nil error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	var last *http.Response
	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed below or by the caller
			r, err := c.roundTrip(ctx, req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &StatusError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if last != nil {
			drain(last)
			last = nil
		}
		if resp != nil {
			last = resp
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.Retries), ctx)
	err := backoff.Retry(attempt, policy)

	var statusErr *StatusError
	switch {
	case err == nil:
		c.recordSuccess()
		return last, nil
	case errors.As(err, &statusErr) && last != nil:
		c.recordFailure(err)
		return last, nil
	default:
		if last != nil {
			drain(last)
		}
		c.recordFailure(err)
		return nil, err
	}
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("replay request body: %w", err))
		}
		clone.Body = body
	}
	return c.httpClient.Do(clone)
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

package observation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the observation service.
type ServiceConfig struct {
	// Source is the underlying observation store.
	Source Source

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache the snapshot (default: 1 minute).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on store errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration

	// Clock is the time source. Defaults to the real clock.
	Clock clockwork.Clock

	// OnRefresh is called with the station count after each successful refresh.
	OnRefresh func(stations int)
}

// Service caches the observation set read from a Source.
// The returned slices are shared between callers and must not be modified.
type Service struct {
	source          Source
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	clock           clockwork.Clock
	onRefresh       func(int)

	mu          sync.RWMutex
	snapshot    []Observation
	fetchedAt   time.Time
	cacheExpiry time.Time
}

// NewService creates a new observation service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		source:          cfg.Source,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		clock:           clock,
		onRefresh:       cfg.OnRefresh,
	}
}

// ListObservations returns the cached snapshot, refreshing it when expired.
func (s *Service) ListObservations(ctx context.Context) ([]Observation, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.clock.Now().Before(s.cacheExpiry) {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx, false)
}

// Refresh forces a reload from the underlying source.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx, true)
	return err
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData           bool
	FetchedAt         time.Time
	ExpiresAt         time.Time
	IsExpired         bool
	IsStale           bool
	ObservationCount  int
	StationCount      int
	LatestObservation time.Time
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return CacheStatus{}
	}

	now := s.clock.Now()
	status := CacheStatus{
		HasData:          true,
		FetchedAt:        s.fetchedAt,
		ExpiresAt:        s.cacheExpiry,
		IsExpired:        now.After(s.cacheExpiry),
		IsStale:          now.After(s.fetchedAt.Add(s.staleIfErrorTTL)),
		ObservationCount: len(s.snapshot),
		StationCount:     countStations(s.snapshot),
	}
	for _, o := range s.snapshot {
		if o.Timestamp.After(status.LatestObservation) {
			status.LatestObservation = o.Timestamp
		}
	}
	return status
}

func (s *Service) refresh(ctx context.Context, force bool) ([]Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if !force && s.snapshot != nil && s.clock.Now().Before(s.cacheExpiry) {
		return s.snapshot, nil
	}

	s.logger.Debug().Msg("refreshing observation snapshot")

	observations, err := s.source.ListObservations(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read observations")

		if s.snapshot != nil && s.clock.Now().Before(s.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.fetchedAt).
				Msg("serving stale observations due to store error")
			return s.snapshot, nil
		}

		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if observations == nil {
		observations = []Observation{}
	}

	now := s.clock.Now()
	s.snapshot = observations
	s.fetchedAt = now
	s.cacheExpiry = now.Add(s.cacheTTL)

	stations := countStations(observations)
	if s.onRefresh != nil {
		s.onRefresh(stations)
	}

	s.logger.Info().
		Int("observations", len(observations)).
		Int("stations", stations).
		Time("expires_at", s.cacheExpiry).
		Msg("observation snapshot refreshed")

	return observations, nil
}

func countStations(observations []Observation) int {
	seen := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		seen[o.StationID] = struct{}{}
	}
	return len(seen)
}

var _ Source = (*Service)(nil)

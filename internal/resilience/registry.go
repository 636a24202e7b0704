package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Monitored is anything exposing circuit breaker state.
type Monitored interface {
	Name() string
	BreakerState() gobreaker.State
	BreakerCounts() gobreaker.Counts
}

// Health statuses reported by BackendHealth.Status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// BackendHealth is a point-in-time health report for one backend.
type BackendHealth struct {
	Name          string
	State         gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status maps the breaker state to healthy, degraded (half-open) or unhealthy (open).
func (h BackendHealth) Status() string {
	switch h.State {
	case gobreaker.StateClosed:
		return StatusHealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Registry tracks backend clients and their recent outcomes.
type Registry struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	backends map[string]*entry
}

type entry struct {
	backend       Monitored
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry using the real clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(clockwork.NewRealClock())
}

// NewRegistryWithClock creates an empty registry using clock for timestamps.
func NewRegistryWithClock(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:    clock,
		backends: make(map[string]*entry),
	}
}

// Register adds or replaces a backend.
func (r *Registry) Register(backend Monitored) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[backend.Name()] = &entry{backend: backend}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.backends[name]; ok {
		now := r.clock.Now()
		e.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.backends[name]; ok {
		now := r.clock.Now()
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the report for one backend.
func (r *Registry) Health(name string) (BackendHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.backends[name]
	if !ok {
		return BackendHealth{}, false
	}
	return e.report(name), true
}

// All returns reports for every backend sorted by name.
func (r *Registry) All() []BackendHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]BackendHealth, 0, len(r.backends))
	for name, e := range r.backends {
		reports = append(reports, e.report(name))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	return reports
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

func (e *entry) report(name string) BackendHealth {
	return BackendHealth{
		Name:          name,
		State:         e.backend.BreakerState(),
		Counts:        e.backend.BreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}

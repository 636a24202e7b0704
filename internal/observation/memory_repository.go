package observation

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used by tests and for local runs with OBSERVATION_STORE=memory.
type InMemoryRepository struct {
	mu           sync.RWMutex
	observations []Observation
	nextID       int64
}

// NewInMemoryRepository creates a new in-memory observation repository.
func NewInMemoryRepository(seed ...Observation) *InMemoryRepository {
	r := &InMemoryRepository{nextID: 1}
	if len(seed) > 0 {
		_ = r.Insert(context.Background(), seed)
	}
	return r
}

// ListObservations returns a copy of all observations in insertion order.
func (r *InMemoryRepository) ListObservations(_ context.Context) ([]Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Observation, len(r.observations))
	copy(out, r.observations)
	return out, nil
}

// Insert appends a batch of observations, assigning IDs.
func (r *InMemoryRepository) Insert(_ context.Context, observations []Observation) error {
	if len(observations) == 0 {
		return ErrEmptyBatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range observations {
		o.ID = r.nextID
		r.nextID++
		r.observations = append(r.observations, o)
	}
	return nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(_ context.Context) error {
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)

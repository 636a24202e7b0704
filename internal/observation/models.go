// Package observation provides monitoring station observations and their storage.
package observation

import (
	"context"
	"errors"
	"time"
)

// Storage errors.
var (
	ErrEmptyBatch       = errors.New("observation batch is empty")
	ErrStoreUnavailable = errors.New("observation store unavailable")
)

// Observation is a single station record as read from storage.
// Values are treated as an immutable snapshot once returned by a Source.
type Observation struct {
	ID        int64
	Timestamp time.Time
	StationID string
	Lat       float64
	Lon       float64

	// Features consumed by the prediction models.
	AOD           float64
	Hotspots      float64
	TrafficIndex  float64
	IndustryIndex float64
	TempC         float64
	RH            float64
	WindSpeed     float64

	// Outcomes observed at the station. The fractions are historical ground
	// truth and are not guaranteed to sum to one.
	PM25         float64
	StubbleFrac  float64
	TrafficFrac  float64
	IndustryFrac float64
}

// Source provides read access to the current observations.
// Implementations must return observations in a stable order.
type Source interface {
	ListObservations(ctx context.Context) ([]Observation, error)
}

// Repository is a Source that also accepts new observations.
type Repository interface {
	Source

	// Insert stores a batch of observations.
	Insert(ctx context.Context, observations []Observation) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

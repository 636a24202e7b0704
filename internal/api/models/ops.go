package models

// Health is the response of the liveness and readiness checks.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the response of GET /v1/ops/status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Backends   []BackendStatus   `json:"backends"`
	Snapshot   SnapshotStatus    `json:"snapshot"`
}

// SubsystemStatus is the health of an internal dependency.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// BackendStatus is the circuit breaker state of an external backend.
type BackendStatus struct {
	Name                string       `json:"name"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
}

// SnapshotStatus describes the cached observation snapshot.
type SnapshotStatus struct {
	HasData           bool       `json:"hasData"`
	Stale             bool       `json:"stale"`
	Observations      int        `json:"observations"`
	Stations          int        `json:"stations"`
	FetchedAt         *Timestamp `json:"fetchedAt,omitempty"`
	ExpiresAt         *Timestamp `json:"expiresAt,omitempty"`
	LatestObservation *Timestamp `json:"latestObservation,omitempty"`
}

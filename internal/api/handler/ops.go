package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/api/response"
	"github.com/smogcast/smogcast/internal/observation"
	"github.com/smogcast/smogcast/internal/resilience"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SnapshotStatuser reports the observation cache state.
type SnapshotStatuser interface {
	CacheStatus() observation.CacheStatus
}

// ModelStatuser reports whether the prediction models are available.
type ModelStatuser interface {
	Available() bool
}

// modelVersioner is implemented by backends that know which model they serve.
type modelVersioner interface {
	Version() string
}

// OpsConfig holds the dependencies of the ops endpoints. Nil dependencies are skipped.
type OpsConfig struct {
	Version   string
	BuildTime string
	Store     Pinger
	Snapshot  SnapshotStatuser
	Model     ModelStatuser
	Registry  *resilience.Registry
	Logger    zerolog.Logger
	Clock     clockwork.Clock
}

// OpsHandler serves liveness, readiness and status endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Clock.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails while the observation
// store is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Clock.Now()),
	}

	if err := h.pingStore(r.Context()); err != nil {
		h.cfg.Logger.Warn().Err(err).Msg("readiness check failed")
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"observation_store": err.Error()}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.cfg.Clock.Now()),
		Subsystems: []models.SubsystemStatus{},
		Backends:   []models.BackendStatus{},
	}

	store := models.SubsystemStatus{Name: "observation-store", Status: models.HealthStatusOK}
	if err := h.pingStore(r.Context()); err != nil {
		store.Status = models.HealthStatusFail
		store.Detail = err.Error()
	}
	status.Subsystems = append(status.Subsystems, store)

	if h.cfg.Model != nil {
		model := models.SubsystemStatus{Name: "prediction-model", Status: models.HealthStatusOK}
		if !h.cfg.Model.Available() {
			model.Status = models.HealthStatusDegraded
			model.Detail = "serving observed values"
		} else if v, ok := h.cfg.Model.(modelVersioner); ok && v.Version() != "" {
			model.Detail = "version " + v.Version()
		}
		status.Subsystems = append(status.Subsystems, model)
	}

	if h.cfg.Snapshot != nil {
		cs := h.cfg.Snapshot.CacheStatus()
		status.Snapshot = models.SnapshotStatus{
			HasData:           cs.HasData,
			Stale:             cs.IsStale,
			Observations:      cs.ObservationCount,
			Stations:          cs.StationCount,
			FetchedAt:         models.TimestampPtr(cs.FetchedAt),
			ExpiresAt:         models.TimestampPtr(cs.ExpiresAt),
			LatestObservation: models.TimestampPtr(cs.LatestObservation),
		}
	}

	if h.cfg.Registry != nil {
		for _, b := range h.cfg.Registry.All() {
			status.Backends = append(status.Backends, backendStatus(b))
		}
	}

	status.Status = overall(status)
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.cfg.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.cfg.Store.Ping(ctx)
}

func backendStatus(b resilience.BackendHealth) models.BackendStatus {
	out := models.BackendStatus{
		Name:                b.Name,
		CircuitState:        b.State.String(),
		ConsecutiveFailures: b.Counts.ConsecutiveFailures,
		LastError:           b.LastError,
	}
	switch b.Status() {
	case resilience.StatusHealthy:
		out.Status = models.HealthStatusOK
	case resilience.StatusDegraded:
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusFail
	}
	if b.LastSuccessAt != nil {
		out.LastSuccessAt = models.TimestampPtr(*b.LastSuccessAt)
	}
	if b.LastFailureAt != nil {
		out.LastFailureAt = models.TimestampPtr(*b.LastFailureAt)
	}
	return out
}

// overall fails only when the store is down; anything else unhealthy degrades.
func overall(s models.SystemStatus) models.HealthStatus {
	result := models.HealthStatusOK
	for _, sub := range s.Subsystems {
		switch {
		case sub.Name == "observation-store" && sub.Status == models.HealthStatusFail:
			return models.HealthStatusFail
		case sub.Status != models.HealthStatusOK:
			result = models.HealthStatusDegraded
		}
	}
	for _, b := range s.Backends {
		if b.Status != models.HealthStatusOK {
			result = models.HealthStatusDegraded
		}
	}
	if s.Snapshot.HasData && s.Snapshot.Stale {
		result = models.HealthStatusDegraded
	}
	return result
}

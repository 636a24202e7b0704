// Package api wires the HTTP routes of the smogcast API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/api/handler"
	"github.com/smogcast/smogcast/internal/api/middleware"
	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/api/response"
	"github.com/smogcast/smogcast/internal/observation"
	"github.com/smogcast/smogcast/internal/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger

	Forecaster   handler.Forecaster
	Observations observation.Source
	Store        handler.Pinger
	Snapshot     handler.SnapshotStatuser
	Model        handler.ModelStatuser
	Registry     *resilience.Registry

	// ForecastMaxHours caps the hours parameter of /v1/forecast. Zero uses
	// forecast.MaxHorizonHours.
	ForecastMaxHours int

	// HTTPMetrics records OpenTelemetry request metrics. Optional.
	HTTPMetrics *middleware.HTTPMetrics

	// Gatherer is exposed on /metrics. Optional.
	Gatherer prometheus.Gatherer

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// AllowedOrigins for cross-origin browser requests. Empty allows any origin.
	AllowedOrigins []string

	// Rate limits; zero values use the middleware defaults.
	StandardRateLimit middleware.RateLimitConfig
	ForecastRateLimit middleware.RateLimitConfig
}

// NewRouter creates the chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "smogcast-api"
	}

	// Order matters: the request id must exist before tracing and logging read it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(corsHandler(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewProblem(models.ProblemTypeNotFound, "Method not allowed", http.StatusMethodNotAllowed, "").
			WithDetail(r.Method+" is not supported on this endpoint"))
	})

	standard := cfg.StandardRateLimit
	if standard.RequestLimit == 0 {
		standard = middleware.StandardRateLimit
	}
	expensive := cfg.ForecastRateLimit
	if expensive.RequestLimit == 0 {
		expensive = middleware.ForecastRateLimit
	}

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Store:     cfg.Store,
		Snapshot:  cfg.Snapshot,
		Model:     cfg.Model,
		Registry:  cfg.Registry,
		Logger:    cfg.Logger,
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Forecaster != nil {
			assessments := handler.NewAssessmentHandler(cfg.Forecaster, cfg.ForecastMaxHours, cfg.Logger)
			r.With(middleware.RateLimitByIP(standard)).Get("/aqi", assessments.GetAQI)
			r.With(middleware.RateLimitByIP(expensive)).Get("/forecast", assessments.GetForecast)
		}

		if cfg.Observations != nil {
			stations := handler.NewStationHandler(cfg.Observations, cfg.Logger)
			r.With(middleware.RateLimitByIP(standard)).Get("/stations", stations.ListStations)
		}
	})

	return r
}

// corsHandler answers preflight requests before TLS enforcement and routing.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	})
}

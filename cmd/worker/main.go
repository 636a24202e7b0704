// Package main provides the entrypoint for the smogcast background worker.
// The worker refreshes the observation snapshot and precomputes assessments
// for the configured metro areas on a timer, and optionally on Pub/Sub jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/app"
	"github.com/smogcast/smogcast/internal/observability"
	"github.com/smogcast/smogcast/internal/telemetry"
	"github.com/smogcast/smogcast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "smogcast-worker"

	_ = godotenv.Load()

	cfg := app.ConfigFromEnv()
	log := app.NewLogger(os.Stdout, serviceName, Version, cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting smogcast worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version, cfg.Env))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	components, err := app.Build(ctx, cfg, metrics, nil, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer components.Close()

	job := worker.NewAssessmentJob(worker.AssessmentJobConfig{
		Config:   worker.ConfigFromEnv(),
		Logger:   log.With().Str("component", "worker").Logger(),
		Assessor: components.Forecast,
		Snapshot: components.Observations,
		Recorder: metrics,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      healthRouter(job),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if pubsubHandler := newPubSubHandler(ctx, job, log); pubsubHandler != nil {
		defer func() { _ = pubsubHandler.Close() }()
		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pub/sub receiver stopped")
			}
		}()
	}

	go runLoop(ctx, job, interval(), log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runLoop runs the refresh job once at startup and then on every tick.
func runLoop(ctx context.Context, job *worker.AssessmentJob, every time.Duration, log zerolog.Logger) {
	log.Info().Dur("interval", every).Msg("refresh loop started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if result := job.Run(ctx); result.Outcome() == worker.OutcomeFailure && ctx.Err() == nil {
			log.Error().Int("failed", result.Failed).Msg("assessment refresh failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func interval() time.Duration {
	if d, err := time.ParseDuration(os.Getenv("WORKER_INTERVAL")); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}

func newPubSubHandler(ctx context.Context, job *worker.AssessmentJob, log zerolog.Logger) *worker.PubSubHandler {
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID == "" || subscription == "" {
		log.Info().Msg("pub/sub not configured, running on timer only")
		return nil
	}

	h, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		Dispatcher:       worker.NewDispatcher(job, log),
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pub/sub handler, running on timer only")
		return nil
	}
	return h
}

func healthRouter(job *worker.AssessmentJob) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		stats := job.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "healthy",
			"version":      Version,
			"runs":         stats.Runs,
			"last_outcome": stats.LastOutcome,
			"last_run_at":  stats.LastRunAt,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

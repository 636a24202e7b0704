// Package main provides the entrypoint for the smogcast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smogcast/smogcast/internal/api"
	"github.com/smogcast/smogcast/internal/api/middleware"
	"github.com/smogcast/smogcast/internal/app"
	"github.com/smogcast/smogcast/internal/observability"
	"github.com/smogcast/smogcast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "smogcast-api"

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := app.ConfigFromEnv()
	log := app.NewLogger(os.Stdout, serviceName, Version, cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting smogcast API")

	ctx := context.Background()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version, cfg.Env)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if telemetryCfg.Enabled {
		log.Info().Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewHTTPMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	components, err := app.Build(ctx, cfg, metrics, nil, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer components.Close()

	log.Info().
		Str("store", components.Store.Driver).
		Str("model_backend", cfg.ModelBackend).
		Bool("model_available", components.Predictor.Available()).
		Msg("services initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		ServiceName:  serviceName,
		Logger:       log,
		Forecaster:   components.Forecast,
		Observations: components.Observations,
		Store:        components.Store.Repository,
		Snapshot:     components.Observations,
		Model:        components.Predictor,
		Registry:     components.Registry,
		HTTPMetrics:  httpMetrics,
		Gatherer:     prometheus.DefaultGatherer,
		RequireTLS:   os.Getenv("REQUIRE_TLS") == "true",

		ForecastMaxHours: cfg.ForecastMaxHours,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

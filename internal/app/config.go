// Package app assembles the observation store, prediction backend and
// forecast service shared by the API and worker binaries.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smogcast/smogcast/internal/database"
	"github.com/smogcast/smogcast/internal/forecast"
)

// Prediction backends accepted in MODEL_BACKEND.
const (
	ModelRemote = "remote"
	ModelLinear = "linear"
	ModelNone   = "none"
)

// Config holds process configuration.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	Database database.Config

	// CacheTTL and StaleTTL configure the observation snapshot cache.
	CacheTTL time.Duration
	StaleTTL time.Duration

	ModelBackend    string
	ModelServiceURL string
	ModelTimeout    time.Duration
	ModelPath       string

	ForecastMaxHours int

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string

	Seed SeedConfig
}

// SeedConfig controls synthetic observation seeding at startup.
type SeedConfig struct {
	Enabled  bool
	Stations int
	Hours    int
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Env:              getEnvOrDefault("APP_ENV", "development"),
		Port:             getEnvOrDefault("APP_PORT", "8080"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		Database:         database.ConfigFromEnv(),
		CacheTTL:         getDuration("OBSERVATION_CACHE_TTL", time.Minute),
		StaleTTL:         getDuration("OBSERVATION_STALE_TTL", 30*time.Minute),
		ModelBackend:     strings.ToLower(getEnvOrDefault("MODEL_BACKEND", ModelLinear)),
		ModelServiceURL:  getEnvOrDefault("MODEL_SERVICE_URL", "http://localhost:8000"),
		ModelTimeout:     getDuration("MODEL_TIMEOUT", 5*time.Second),
		ModelPath:        os.Getenv("MODEL_PATH"),
		ForecastMaxHours: getInt("FORECAST_MAX_HOURS", forecast.MaxHorizonHours),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Seed: SeedConfig{
			Enabled:  os.Getenv("SEED_SYNTHETIC") == "true",
			Stations: getInt("SEED_STATIONS", 6),
			Hours:    getInt("SEED_HOURS", 24),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

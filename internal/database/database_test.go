package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/database"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"OBSERVATION_STORE", "DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "SQLITE_PATH"} {
		t.Setenv(key, "")
	}

	cfg := database.ConfigFromEnv()

	assert.Equal(t, database.DriverPostgres, cfg.Driver)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "smogcast", cfg.Database)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, "data/observations.db", cfg.SQLitePath)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("OBSERVATION_STORE", "SQLite")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("SQLITE_PATH", "/tmp/obs.db")

	cfg := database.ConfigFromEnv()

	assert.Equal(t, database.DriverSQLite, cfg.Driver)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "/tmp/obs.db", cfg.SQLitePath)
}

func TestConfig_ConnectionString(t *testing.T) {
	cfg := database.Config{User: "u", Password: "p", Host: "db", Port: 5432, Database: "smogcast", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5432/smogcast?sslmode=require", cfg.ConnectionString())
}

func TestConfig_SQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{":memory:", ":memory:"},
		{"data/obs.db", "file:data/obs.db?_busy_timeout=5000&_journal_mode=WAL"},
		{"file:obs.db?cache=shared", "file:obs.db?cache=shared&_busy_timeout=5000&_journal_mode=WAL"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, database.Config{SQLitePath: tt.path}.SQLiteDSN())
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "observations.db")

	db, err := database.OpenSQLite(context.Background(), database.Config{SQLitePath: path})
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
}

package observation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS observations (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_utc  TEXT NOT NULL,
		station_id     TEXT NOT NULL,
		lat            REAL NOT NULL,
		lon            REAL NOT NULL,
		aod            REAL NOT NULL DEFAULT 0,
		hotspots       REAL NOT NULL DEFAULT 0,
		traffic_index  REAL NOT NULL DEFAULT 0,
		industry_index REAL NOT NULL DEFAULT 0,
		temp_c         REAL NOT NULL DEFAULT 0,
		rh             REAL NOT NULL DEFAULT 0,
		wind_speed     REAL NOT NULL DEFAULT 0,
		pm25           REAL NOT NULL DEFAULT 0,
		stubble_frac   REAL NOT NULL DEFAULT 0,
		traffic_frac   REAL NOT NULL DEFAULT 0,
		industry_frac  REAL NOT NULL DEFAULT 0
	)
`

// SQLiteRepository is a SQLite implementation of Repository.
// The database handle is expected to be opened with the sqlite3 driver.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite observation repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureSchema creates the observations table if it does not exist.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create observations table: %w", err)
	}
	return nil
}

// ListObservations returns all observations ordered by insertion.
func (r *SQLiteRepository) ListObservations(ctx context.Context) ([]Observation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM observations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var (
			o  Observation
			ts string
		)
		if err := rows.Scan(
			&o.ID, &ts, &o.StationID, &o.Lat, &o.Lon,
			&o.AOD, &o.Hotspots, &o.TrafficIndex, &o.IndustryIndex, &o.TempC, &o.RH, &o.WindSpeed,
			&o.PM25, &o.StubbleFrac, &o.TrafficFrac, &o.IndustryFrac,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp of observation %d: %w", o.ID, err)
		}
		observations = append(observations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// Insert stores a batch of observations in one transaction.
func (r *SQLiteRepository) Insert(ctx context.Context, observations []Observation) error {
	if len(observations) == 0 {
		return ErrEmptyBatch
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			timestamp_utc, station_id, lat, lon,
			aod, hotspots, traffic_index, industry_index, temp_c, rh, wind_speed,
			pm25, stubble_frac, traffic_frac, industry_frac
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range observations {
		if _, err := stmt.ExecContext(ctx,
			o.Timestamp.UTC().Format(time.RFC3339Nano), o.StationID, o.Lat, o.Lon,
			o.AOD, o.Hotspots, o.TrafficIndex, o.IndustryIndex, o.TempC, o.RH, o.WindSpeed,
			o.PM25, o.StubbleFrac, o.TrafficFrac, o.IndustryFrac,
		); err != nil {
			return fmt.Errorf("insert observation for station %s: %w", o.StationID, err)
		}
	}

	return tx.Commit()
}

// Ping verifies the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var _ Repository = (*SQLiteRepository)(nil)

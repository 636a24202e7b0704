package observation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS observations (
		id             BIGSERIAL PRIMARY KEY,
		timestamp_utc  TIMESTAMPTZ NOT NULL,
		station_id     TEXT NOT NULL,
		lat            DOUBLE PRECISION NOT NULL,
		lon            DOUBLE PRECISION NOT NULL,
		aod            DOUBLE PRECISION NOT NULL DEFAULT 0,
		hotspots       DOUBLE PRECISION NOT NULL DEFAULT 0,
		traffic_index  DOUBLE PRECISION NOT NULL DEFAULT 0,
		industry_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		temp_c         DOUBLE PRECISION NOT NULL DEFAULT 0,
		rh             DOUBLE PRECISION NOT NULL DEFAULT 0,
		wind_speed     DOUBLE PRECISION NOT NULL DEFAULT 0,
		pm25           DOUBLE PRECISION NOT NULL DEFAULT 0,
		stubble_frac   DOUBLE PRECISION NOT NULL DEFAULT 0,
		traffic_frac   DOUBLE PRECISION NOT NULL DEFAULT 0,
		industry_frac  DOUBLE PRECISION NOT NULL DEFAULT 0
	)
`

// selectColumns is shared by the SQL repositories so both scan identically.
const selectColumns = `
	id, timestamp_utc, station_id, lat, lon,
	aod, hotspots, traffic_index, industry_index, temp_c, rh, wind_speed,
	pm25, stubble_frac, traffic_frac, industry_frac
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL observation repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the observations table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create observations table: %w", err)
	}
	return nil
}

// ListObservations returns all observations ordered by insertion.
func (r *PostgresRepository) ListObservations(ctx context.Context) ([]Observation, error) {
	query := `SELECT ` + selectColumns + ` FROM observations ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(
			&o.ID, &o.Timestamp, &o.StationID, &o.Lat, &o.Lon,
			&o.AOD, &o.Hotspots, &o.TrafficIndex, &o.IndustryIndex, &o.TempC, &o.RH, &o.WindSpeed,
			&o.PM25, &o.StubbleFrac, &o.TrafficFrac, &o.IndustryFrac,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// Insert stores a batch of observations in a single round trip.
func (r *PostgresRepository) Insert(ctx context.Context, observations []Observation) error {
	if len(observations) == 0 {
		return ErrEmptyBatch
	}

	query := `
		INSERT INTO observations (
			timestamp_utc, station_id, lat, lon,
			aod, hotspots, traffic_index, industry_index, temp_c, rh, wind_speed,
			pm25, stubble_frac, traffic_frac, industry_frac
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(query,
			o.Timestamp.UTC(), o.StationID, o.Lat, o.Lon,
			o.AOD, o.Hotspots, o.TrafficIndex, o.IndustryIndex, o.TempC, o.RH, o.WindSpeed,
			o.PM25, o.StubbleFrac, o.TrafficFrac, o.IndustryFrac,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

var _ Repository = (*PostgresRepository)(nil)

package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/database"
	"github.com/smogcast/smogcast/internal/observation"
)

// Store is an opened observation repository and its release function.
type Store struct {
	Driver     string
	Repository observation.Repository
	close      func()
}

// Close releases the underlying connection.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore opens the repository selected by cfg.Driver and ensures its schema.
func OpenStore(ctx context.Context, cfg database.Config, logger zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := observation.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("postgres observation store connected")
		return &Store{Driver: cfg.Driver, Repository: repo, close: pool.Close}, nil

	case database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := observation.NewSQLiteRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite observation store opened")
		return &Store{Driver: cfg.Driver, Repository: repo, close: func() { _ = db.Close() }}, nil

	case database.DriverMemory:
		logger.Warn().Msg("using in-memory observation store; data is lost on exit")
		return &Store{Driver: cfg.Driver, Repository: observation.NewInMemoryRepository()}, nil

	default:
		return nil, fmt.Errorf("unknown observation store %q", cfg.Driver)
	}
}

// Seed inserts synthetic observations into repo.
func Seed(ctx context.Context, repo observation.Repository, cfg SeedConfig, clock clockwork.Clock) (int, error) {
	gen := observation.NewGenerator(observation.GeneratorConfig{
		Stations: cfg.Stations,
		Hours:    cfg.Hours,
		Seed:     uint64(clock.Now().Unix()), //nolint:gosec // positive timestamp
		Clock:    clock,
	})
	observations := gen.Generate()
	if err := repo.Insert(ctx, observations); err != nil {
		return 0, fmt.Errorf("seed observations: %w", err)
	}
	return len(observations), nil
}

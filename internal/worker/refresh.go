package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/forecast"
)

// Job names used in metrics and Pub/Sub messages.
const (
	JobAssessmentRefresh = "assessment_refresh"
	JobHealthCheck       = "health_check"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// Assessor is the forecast API the job exercises.
type Assessor interface {
	Assess(ctx context.Context, lat, lon float64) (*forecast.Assessment, error)
	Forecast(ctx context.Context, lat, lon float64, hours int) (*forecast.Forecast, error)
}

// SnapshotRefresher reloads the observation snapshot.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// RunRecorder receives job run outcomes.
type RunRecorder interface {
	RecordWorkerRun(job, outcome string, seconds float64)
}

// AssessmentJobConfig holds configuration for creating an AssessmentJob.
type AssessmentJobConfig struct {
	Config   RefreshConfig
	Logger   zerolog.Logger
	Assessor Assessor

	// Snapshot is refreshed at the start of each run when RefreshSnapshot is set. Optional.
	Snapshot SnapshotRefresher

	// Recorder receives run outcomes. Optional.
	Recorder RunRecorder

	Clock clockwork.Clock
}

// AssessmentJob refreshes the observation snapshot and warms assessments and
// forecasts for the configured targets with a bounded worker pool.
type AssessmentJob struct {
	config   RefreshConfig
	logger   zerolog.Logger
	assessor Assessor
	snapshot SnapshotRefresher
	recorder RunRecorder
	clock    clockwork.Clock

	mu    sync.RWMutex
	stats Stats
}

// Stats accumulates job statistics across runs.
type Stats struct {
	Runs             int64
	PointsSucceeded  int64
	PointsFailed     int64
	SnapshotFailures int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
	LastOutcome      string
}

// NewAssessmentJob creates a new assessment refresh job.
func NewAssessmentJob(cfg AssessmentJobConfig) *AssessmentJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &AssessmentJob{
		config:   config,
		logger:   cfg.Logger,
		assessor: cfg.Assessor,
		snapshot: cfg.Snapshot,
		recorder: cfg.Recorder,
		clock:    clock,
	}
}

// PointError is a failed point in a run.
type PointError struct {
	Point Point
	Error string
}

// PointSummary is the assessment resolved for a point.
type PointSummary struct {
	Point     Point
	StationID string
	PM25      float64
	Category  forecast.Category
	Source    forecast.EstimateSource
}

// RunResult contains the result of one run.
type RunResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	SnapshotErr string
	Errors      []PointError
	Summaries   []PointSummary
}

// Outcome summarizes the run as success, partial or failure.
func (r *RunResult) Outcome() string {
	switch {
	case r.Failed == 0 && r.SnapshotErr == "":
		return OutcomeSuccess
	case r.Successful > r.Failed:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}

// Run executes the job for all configured targets.
func (j *AssessmentJob) Run(ctx context.Context) *RunResult {
	return j.run(ctx, JobAssessmentRefresh, j.config)
}

// HealthCheck assesses the highest-priority point and fails if it cannot be resolved.
func (j *AssessmentJob) HealthCheck(ctx context.Context) error {
	points := j.config.AllPoints()
	if len(points) == 0 {
		return fmt.Errorf("no targets configured")
	}

	cfg := RefreshConfig{
		Targets:     []Target{{Name: "health-check", Points: points[:1]}},
		Concurrency: 1,
		Timeout:     10 * time.Second,
	}
	result := j.run(ctx, JobHealthCheck, cfg)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}
	return nil
}

func (j *AssessmentJob) run(ctx context.Context, job string, cfg RefreshConfig) *RunResult {
	start := j.clock.Now()
	result := &RunResult{
		StartTime:   start,
		TotalPoints: cfg.TotalPoints(),
	}

	j.logger.Info().
		Str("job", job).
		Int("total_points", result.TotalPoints).
		Int("concurrency", cfg.Concurrency).
		Msg("starting assessment job")

	if cfg.RefreshSnapshot && j.snapshot != nil {
		if err := j.snapshot.Refresh(ctx); err != nil {
			// Assessments can still be served from a stale snapshot.
			j.logger.Warn().Err(err).Msg("observation snapshot refresh failed")
			result.SnapshotErr = err.Error()
		}
	}

	points := cfg.AllPoints()
	pointsCh := make(chan Point, len(points))
	resultsCh := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pointsCh {
				if ctx.Err() != nil {
					resultsCh <- pointResult{point: p, err: ctx.Err()}
					continue
				}
				resultsCh <- j.assessPoint(ctx, cfg, p)
			}
		}()
	}

	for _, p := range points {
		pointsCh <- p
	}
	close(pointsCh)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for pr := range resultsCh {
		if pr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, PointError{Point: pr.point, Error: pr.err.Error()})
			continue
		}
		result.Successful++
		result.Summaries = append(result.Summaries, pr.summary)
	}

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(start)

	j.updateStats(result)
	if j.recorder != nil {
		j.recorder.RecordWorkerRun(job, result.Outcome(), result.Duration.Seconds())
	}

	j.logger.Info().
		Str("job", job).
		Str("outcome", result.Outcome()).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("assessment job completed")

	return result
}

type pointResult struct {
	point   Point
	summary PointSummary
	err     error
}

func (j *AssessmentJob) assessPoint(ctx context.Context, cfg RefreshConfig, p Point) pointResult {
	pointCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if j.assessor == nil {
		return pointResult{point: p, err: fmt.Errorf("no assessor configured")}
	}

	a, err := j.assessor.Assess(pointCtx, p.Lat, p.Lon)
	if err != nil {
		return pointResult{point: p, err: fmt.Errorf("assess: %w", err)}
	}

	if cfg.ForecastHours > 0 {
		if _, err := j.assessor.Forecast(pointCtx, p.Lat, p.Lon, cfg.ForecastHours); err != nil {
			return pointResult{point: p, err: fmt.Errorf("forecast: %w", err)}
		}
	}

	return pointResult{
		point: p,
		summary: PointSummary{
			Point:     p,
			StationID: a.StationID,
			PM25:      a.PM25,
			Category:  a.Category,
			Source:    a.Source,
		},
	}
}

func (j *AssessmentJob) updateStats(result *RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stats.Runs++
	j.stats.PointsSucceeded += int64(result.Successful)
	j.stats.PointsFailed += int64(result.Failed)
	if result.SnapshotErr != "" {
		j.stats.SnapshotFailures++
	}
	j.stats.LastRunAt = result.EndTime
	j.stats.LastRunDuration = result.Duration
	j.stats.LastOutcome = result.Outcome()
}

// Stats returns a copy of the accumulated statistics.
func (j *AssessmentJob) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

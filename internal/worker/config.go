// Package worker runs background assessment refresh jobs.
package worker

import (
	"os"
	"sort"
	"strconv"
	"time"
)

// Target is a city whose assessments are kept warm.
type Target struct {
	Name string

	// Points are the coordinates assessed for the target.
	Points []Point

	// Priority orders targets (lower first).
	Priority int
}

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// RefreshConfig holds configuration for the assessment refresh job.
type RefreshConfig struct {
	// Targets to assess. If empty, uses DefaultTargets.
	Targets []Target

	// Concurrency is the number of points assessed in parallel (default: 3).
	Concurrency int

	// Timeout bounds the work for a single point (default: 30s).
	Timeout time.Duration

	// ForecastHours also computes a forecast of this many hours per point. Zero skips forecasts.
	ForecastHours int

	// RefreshSnapshot reloads observations before assessing.
	RefreshSnapshot bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:         DefaultTargets(),
		Concurrency:     3,
		Timeout:         30 * time.Second,
		ForecastHours:   24,
		RefreshSnapshot: true,
	}
}

// ConfigFromEnv applies WORKER_CONCURRENCY and WORKER_FORECAST_HOURS to the defaults.
func ConfigFromEnv() RefreshConfig {
	cfg := DefaultRefreshConfig()
	if v, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && v > 0 {
		cfg.Concurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("WORKER_FORECAST_HOURS")); err == nil && v >= 0 {
		cfg.ForecastHours = v
	}
	return cfg
}

// DefaultTargets returns the metropolitan areas with the heaviest seasonal
// smog load, Delhi NCR first.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:     "Delhi NCR",
			Priority: 1,
			Points: []Point{
				{Lat: 28.6139, Lon: 77.2090}, // Connaught Place
				{Lat: 28.6508, Lon: 77.2311}, // Chandni Chowk
				{Lat: 28.5355, Lon: 77.3910}, // Noida
				{Lat: 28.4595, Lon: 77.0266}, // Gurugram
			},
		},
		{
			Name:     "Kolkata",
			Priority: 2,
			Points: []Point{
				{Lat: 22.5726, Lon: 88.3639},
				{Lat: 22.5958, Lon: 88.2636}, // Howrah
			},
		},
		{
			Name:     "Mumbai",
			Priority: 2,
			Points: []Point{
				{Lat: 19.0760, Lon: 72.8777},
				{Lat: 19.2183, Lon: 72.9781}, // Thane
			},
		},
		{
			Name:     "Hyderabad",
			Priority: 3,
			Points:   []Point{{Lat: 17.3850, Lon: 78.4867}},
		},
		{
			Name:     "Chennai",
			Priority: 3,
			Points:   []Point{{Lat: 13.0827, Lon: 80.2707}},
		},
		{
			Name:     "Bangalore",
			Priority: 3,
			Points:   []Point{{Lat: 12.9716, Lon: 77.5946}},
		},
	}
}

// AllPoints returns the points of all targets ordered by priority.
func (c RefreshConfig) AllPoints() []Point {
	targets := make([]Target, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })

	var points []Point
	for _, t := range targets {
		points = append(points, t.Points...)
	}
	return points
}

// TotalPoints returns the number of points to assess.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, t := range c.Targets {
		total += len(t.Points)
	}
	return total
}

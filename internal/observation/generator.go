package observation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// City is a seed location for synthetic stations.
type City struct {
	Name string
	Lat  float64
	Lon  float64

	// StubbleBias scales crop-fire hotspots near the city.
	StubbleBias float64
}

// DefaultCities returns the metropolitan areas used for synthetic seeding.
func DefaultCities() []City {
	return []City{
		{Name: "Delhi", Lat: 28.6139, Lon: 77.2090, StubbleBias: 1.0},
		{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777, StubbleBias: 0.1},
		{Name: "Chennai", Lat: 13.0827, Lon: 80.2707, StubbleBias: 0.1},
		{Name: "Kolkata", Lat: 22.5726, Lon: 88.3639, StubbleBias: 0.4},
		{Name: "Bangalore", Lat: 12.9716, Lon: 77.5946, StubbleBias: 0.05},
		{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867, StubbleBias: 0.2},
	}
}

// GeneratorConfig controls synthetic observation generation.
type GeneratorConfig struct {
	// Cities to place stations around. Defaults to DefaultCities.
	Cities []City

	// Stations is the total number of stations (default: one per city).
	Stations int

	// Hours of hourly history per station (default: 24).
	Hours int

	// Seed makes the output reproducible.
	Seed uint64

	// Clock supplies the most recent observation time.
	Clock clockwork.Clock
}

// Generator produces plausible synthetic station observations for local
// development and tests.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator creates a Generator, applying defaults.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if len(cfg.Cities) == 0 {
		cfg.Cities = DefaultCities()
	}
	if cfg.Stations <= 0 {
		cfg.Stations = len(cfg.Cities)
	}
	if cfg.Hours <= 0 {
		cfg.Hours = 24
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Generator{cfg: cfg}
}

// Generate returns Stations*Hours observations, oldest first per station.
func (g *Generator) Generate() []Observation {
	rng := rand.New(rand.NewPCG(g.cfg.Seed, g.cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	latest := g.cfg.Clock.Now().UTC().Truncate(time.Hour)

	observations := make([]Observation, 0, g.cfg.Stations*g.cfg.Hours)
	for i := 0; i < g.cfg.Stations; i++ {
		city := g.cfg.Cities[i%len(g.cfg.Cities)]
		stationID := fmt.Sprintf("%s-%02d", cityCode(city.Name), i/len(g.cfg.Cities)+1)
		lat := city.Lat + (rng.Float64()-0.5)*0.2
		lon := city.Lon + (rng.Float64()-0.5)*0.2

		for h := g.cfg.Hours - 1; h >= 0; h-- {
			ts := latest.Add(-time.Duration(h) * time.Hour)
			observations = append(observations, g.observe(rng, city, stationID, lat, lon, ts))
		}
	}
	return observations
}

func (g *Generator) observe(rng *rand.Rand, city City, stationID string, lat, lon float64, ts time.Time) Observation {
	// Diurnal traffic peak in the evening.
	hourAngle := 2 * math.Pi * float64(ts.Hour()) / 24
	traffic := clamp(0.5+0.3*math.Sin(hourAngle-math.Pi/2)+rng.NormFloat64()*0.1, 0, 1)

	o := Observation{
		Timestamp:     ts,
		StationID:     stationID,
		Lat:           round(lat, 4),
		Lon:           round(lon, 4),
		AOD:           round(clamp(0.3+rng.Float64()*1.2*(0.5+city.StubbleBias), 0.05, 3), 3),
		Hotspots:      math.Round(rng.Float64() * 60 * city.StubbleBias),
		TrafficIndex:  round(traffic, 3),
		IndustryIndex: round(rng.Float64(), 3),
		TempC:         round(18+rng.Float64()*20, 1),
		RH:            round(30+rng.Float64()*60, 1),
		WindSpeed:     round(0.5+rng.Float64()*7, 2),
	}

	pm25 := 15 + 90*o.AOD + 1.8*o.Hotspots + 70*o.TrafficIndex + 60*o.IndustryIndex -
		6*o.WindSpeed + rng.NormFloat64()*8
	o.PM25 = round(math.Max(pm25, 2), 2)

	stubble := 1.8*o.Hotspots/60 + rng.Float64()*0.1
	trafficShare := o.TrafficIndex + rng.Float64()*0.1
	industryShare := 0.8*o.IndustryIndex + rng.Float64()*0.1
	total := stubble + trafficShare + industryShare
	o.StubbleFrac = round(stubble/total, 3)
	o.TrafficFrac = round(trafficShare/total, 3)
	o.IndustryFrac = round(industryShare/total, 3)

	return o
}

func cityCode(name string) string {
	if len(name) < 3 {
		return strings.ToUpper(name)
	}
	return strings.ToUpper(name[:3])
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

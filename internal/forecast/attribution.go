package forecast

import (
	"math"

	"github.com/smogcast/smogcast/internal/observation"
)

// Attribution splits pollution into stubble burning, traffic and industry shares.
type Attribution struct {
	StubbleFrac  float64 `json:"stubble_frac"`
	TrafficFrac  float64 `json:"traffic_frac"`
	IndustryFrac float64 `json:"industry_frac"`
}

// FallbackAttribution is used when a predicted distribution is degenerate.
// The shares sum to one.
var FallbackAttribution = Attribution{
	StubbleFrac:  0.33,
	TrafficFrac:  0.33,
	IndustryFrac: 0.34,
}

// Sum returns the total of the three shares.
func (a Attribution) Sum() float64 {
	return a.StubbleFrac + a.TrafficFrac + a.IndustryFrac
}

// ObservedAttribution returns the fractions recorded at a station, as stored.
func ObservedAttribution(o observation.Observation) Attribution {
	return Attribution{
		StubbleFrac:  o.StubbleFrac,
		TrafficFrac:  o.TrafficFrac,
		IndustryFrac: o.IndustryFrac,
	}
}

// NormalizeAttribution turns raw (stubble, traffic, industry) model output
// into a distribution that sums to one with no negative share.
func NormalizeAttribution(raw [3]float64) Attribution {
	a, _ := normalizeAttribution(raw)
	return a
}

// normalizeAttribution reports whether the fallback distribution was used.
func normalizeAttribution(raw [3]float64) (Attribution, bool) {
	var clamped [3]float64
	var sum float64
	for i, v := range raw {
		// NaN and infinities carry no usable share.
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		clamped[i] = v
		sum += v
	}

	if sum <= 0 {
		return FallbackAttribution, true
	}

	return Attribution{
		StubbleFrac:  clamped[0] / sum,
		TrafficFrac:  clamped[1] / sum,
		IndustryFrac: clamped[2] / sum,
	}, false
}

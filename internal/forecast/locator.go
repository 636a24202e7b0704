package forecast

import (
	"math"

	"github.com/smogcast/smogcast/internal/observation"
)

// PlanarDistance is the Euclidean distance between two coordinates in degree space.
func PlanarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2)
}

// HaversineDistance calculates the distance between two points in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// NearestStation returns the observation closest to (lat, lon) by planar
// distance. On ties the earliest observation in the slice wins.
func NearestStation(observations []observation.Observation, lat, lon float64) (observation.Observation, error) {
	if len(observations) == 0 {
		return observation.Observation{}, ErrNoStationsAvailable
	}

	best := 0
	bestDist := PlanarDistance(observations[0].Lat, observations[0].Lon, lat, lon)
	for i := 1; i < len(observations); i++ {
		d := PlanarDistance(observations[i].Lat, observations[i].Lon, lat, lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return observations[best], nil
}

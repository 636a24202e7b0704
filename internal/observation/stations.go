package observation

import "sort"

// LatestByStation returns the most recent observation of each station,
// ordered by station id. Equal timestamps keep the first in input order.
func LatestByStation(observations []Observation) []Observation {
	latest := make(map[string]Observation, len(observations))
	for _, o := range observations {
		if cur, ok := latest[o.StationID]; !ok || o.Timestamp.After(cur.Timestamp) {
			latest[o.StationID] = o
		}
	}

	out := make([]Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}

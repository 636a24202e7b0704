package forecast

import "github.com/smogcast/smogcast/internal/observation"

// Feature positions in a FeatureVector.
const (
	FeatureAOD = iota
	FeatureHotspots
	FeatureTrafficIndex
	FeatureIndustryIndex
	FeatureTempC
	FeatureRH
	FeatureWindSpeed

	featureCount
)

// FeatureNames lists the model input names in canonical order.
var FeatureNames = [featureCount]string{
	"aod",
	"hotspots",
	"traffic_index",
	"industry_index",
	"temp_c",
	"rh",
	"wind_speed",
}

// FeatureVector holds model inputs in canonical order.
type FeatureVector [featureCount]float64

// FeaturesFrom selects the model inputs of an observation.
func FeaturesFrom(o observation.Observation) FeatureVector {
	return FeatureVector{
		FeatureAOD:           o.AOD,
		FeatureHotspots:      o.Hotspots,
		FeatureTrafficIndex:  o.TrafficIndex,
		FeatureIndustryIndex: o.IndustryIndex,
		FeatureTempC:         o.TempC,
		FeatureRH:            o.RH,
		FeatureWindSpeed:     o.WindSpeed,
	}
}

// AOD returns the aerosol optical depth feature.
func (v FeatureVector) AOD() float64 {
	return v[FeatureAOD]
}

// WithAOD returns a copy of v with the aerosol optical depth replaced.
func (v FeatureVector) WithAOD(aod float64) FeatureVector {
	v[FeatureAOD] = aod
	return v
}

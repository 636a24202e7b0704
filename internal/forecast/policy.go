package forecast

// Policy recommendations.
const (
	RecVehicleEmissionNorms = "Implement stricter vehicle emission norms"
	RecPublicTransportEV    = "Promote public transport and EV adoption"
	RecInSituStubble        = "Promote in-situ stubble management technologies"
	RecBioDecomposers       = "Provide incentives for bio-decomposers and crop diversification"
	RecIndustrialControls   = "Enforce industrial emission control measures"
	RecRealTimeMonitoring   = "Install real-time emission monitoring in factories"
	RecMaintainControls     = "Maintain current pollution control measures"
	RecContinueMonitoring   = "Continue monitoring air quality regularly"
)

// Shares above which a source triggers its recommendations.
const (
	trafficThreshold  = 0.4
	stubbleThreshold  = 0.3
	industryThreshold = 0.3
)

// Recommend returns the interventions warranted by an attribution. Rules are
// independent and always emitted in traffic, stubble, industry order; when
// none apply the maintenance recommendations are returned.
func Recommend(a Attribution) []string {
	var recs []string

	if a.TrafficFrac > trafficThreshold {
		recs = append(recs, RecVehicleEmissionNorms, RecPublicTransportEV)
	}
	if a.StubbleFrac > stubbleThreshold {
		recs = append(recs, RecInSituStubble, RecBioDecomposers)
	}
	if a.IndustryFrac > industryThreshold {
		recs = append(recs, RecIndustrialControls, RecRealTimeMonitoring)
	}

	if len(recs) == 0 {
		recs = append(recs, RecMaintainControls, RecContinueMonitoring)
	}

	return recs
}

package forecast

import "math"

// Diurnal cycle parameters for the aerosol optical depth extrapolation.
const (
	DiurnalAmplitude   = 0.05
	DiurnalPeriodHours = 24
	MinAOD             = 0.01
)

// PerturbAOD evolves the base aerosol optical depth to forecast hour h (1-indexed).
// All other features are held constant over the horizon.
func PerturbAOD(base float64, h int) float64 {
	phase := 2 * math.Pi * float64(h) / DiurnalPeriodHours
	return math.Max(MinAOD, base*(1+DiurnalAmplitude*math.Sin(phase)))
}

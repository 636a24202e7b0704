package forecast

// Category is an air quality severity label derived from PM2.5.
type Category string

const (
	CategoryGood          Category = "Good"
	CategoryModerate      Category = "Moderate"
	CategoryUnhealthy     Category = "Unhealthy"
	CategoryVeryUnhealthy Category = "Very Unhealthy"
	CategoryHazardous     Category = "Hazardous"
)

// Classify maps a PM2.5 concentration in µg/m³ to a Category. Upper bounds
// are inclusive. Negative input is not rejected and classifies as Good.
func Classify(pm25 float64) Category {
	switch {
	case pm25 <= 50:
		return CategoryGood
	case pm25 <= 100:
		return CategoryModerate
	case pm25 <= 250:
		return CategoryUnhealthy
	case pm25 <= 350:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

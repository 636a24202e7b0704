package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/smogcast/smogcast/internal/api/models"
)

// coordinates parses the required lat and lon query parameters.
func coordinates(r *http.Request) (lat, lon float64, errs []models.FieldError) {
	lat, err := parseFloat(r, "lat", -90, 90)
	if err != nil {
		errs = append(errs, *err)
	}
	lon, err = parseFloat(r, "lon", -180, 180)
	if err != nil {
		errs = append(errs, *err)
	}
	return lat, lon, errs
}

func parseFloat(r *http.Request, name string, lo, hi float64) (float64, *models.FieldError) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, &models.FieldError{Field: name, Message: name + " is required", Code: models.CodeRequired}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.FieldError{Field: name, Message: name + " must be a number", Code: models.CodeInvalid}
	}
	if v < lo || v > hi {
		return 0, &models.FieldError{
			Field:   name,
			Message: fmt.Sprintf("%s must be between %g and %g", name, lo, hi),
			Code:    models.CodeOutOfRange,
		}
	}
	return v, nil
}

// hours parses the optional hours query parameter.
func hours(r *http.Request, def, maxHours int) (int, *models.FieldError) {
	raw := strings.TrimSpace(r.URL.Query().Get("hours"))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: "hours", Message: "hours must be an integer", Code: models.CodeInvalid}
	}
	if v < 1 || v > maxHours {
		return 0, &models.FieldError{
			Field:   "hours",
			Message: fmt.Sprintf("hours must be between 1 and %d", maxHours),
			Code:    models.CodeOutOfRange,
		}
	}
	return v, nil
}

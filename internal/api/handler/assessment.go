// Package handler provides the HTTP handlers of the smogcast API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/api/middleware"
	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/api/response"
	"github.com/smogcast/smogcast/internal/forecast"
	"github.com/smogcast/smogcast/internal/observation"
)

// Forecaster resolves assessments and forecasts for a coordinate.
type Forecaster interface {
	Assess(ctx context.Context, lat, lon float64) (*forecast.Assessment, error)
	Forecast(ctx context.Context, lat, lon float64, hours int) (*forecast.Forecast, error)
}

// AssessmentHandler serves point assessments and hourly forecasts.
type AssessmentHandler struct {
	forecaster Forecaster
	maxHours   int
	logger     zerolog.Logger
}

// NewAssessmentHandler creates an AssessmentHandler. maxHours caps the
// forecast horizon a client may request; zero or less uses
// forecast.MaxHorizonHours.
func NewAssessmentHandler(forecaster Forecaster, maxHours int, logger zerolog.Logger) *AssessmentHandler {
	if maxHours <= 0 {
		maxHours = forecast.MaxHorizonHours
	}
	return &AssessmentHandler{forecaster: forecaster, maxHours: maxHours, logger: logger}
}

// GetAQI handles GET /v1/aqi.
func (h *AssessmentHandler) GetAQI(w http.ResponseWriter, r *http.Request) {
	lat, lon, errs := coordinates(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	a, err := h.forecaster.Assess(r.Context(), lat, lon)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.AssessmentFrom(a))
}

// GetForecast handles GET /v1/forecast.
func (h *AssessmentHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, errs := coordinates(r)
	n, herr := hours(r, forecast.DefaultHorizonHours, h.maxHours)
	if herr != nil {
		errs = append(errs, *herr)
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	f, err := h.forecaster.Forecast(r.Context(), lat, lon, n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ForecastFrom(f))
}

func (h *AssessmentHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "hours", Message: err.Error(), Code: models.CodeOutOfRange},
		})
	case errors.Is(err, forecast.ErrNoStationsAvailable):
		response.NotFound(w, r, "no monitoring stations are available")
	case errors.Is(err, observation.ErrStoreUnavailable):
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("observation store unavailable")
		response.ServiceUnavailable(w, r, "observation data is temporarily unavailable")
	default:
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("assessment failed")
		response.InternalError(w, r, "failed to compute assessment")
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/smogcast/smogcast/internal/api/models"
	"github.com/smogcast/smogcast/internal/api/response"
	"github.com/smogcast/smogcast/internal/observation"
)

// StationHandler lists the stations of the current observation snapshot.
type StationHandler struct {
	observations observation.Source
	logger       zerolog.Logger
}

// NewStationHandler creates a StationHandler.
func NewStationHandler(observations observation.Source, logger zerolog.Logger) *StationHandler {
	return &StationHandler{observations: observations, logger: logger}
}

// ListStations handles GET /v1/stations.
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.observations.ListObservations(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list stations")
		if errors.Is(err, observation.ErrStoreUnavailable) {
			response.ServiceUnavailable(w, r, "observation data is temporarily unavailable")
			return
		}
		response.InternalError(w, r, "failed to list stations")
		return
	}

	latest := observation.LatestByStation(observations)
	list := models.StationList{Items: make([]models.Station, 0, len(latest)), Count: len(latest)}
	for _, o := range latest {
		list.Items = append(list.Items, models.Station{
			StationID:  o.StationID,
			Lat:        o.Lat,
			Lon:        o.Lon,
			ObservedAt: models.Timestamp(o.Timestamp),
			PM25:       o.PM25,
		})
	}
	response.JSON(w, r, http.StatusOK, list)
}

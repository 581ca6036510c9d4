package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/middleware"
	"github.com/famtrack/tracker-server-go/internal/service"
)

type TelemetryHandler struct {
	telemetryService *service.TelemetryService
}

func NewTelemetryHandler(telemetryService *service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{telemetryService: telemetryService}
}

func (h *TelemetryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/location", h.Ingest)

	return r
}

type ingestRequest struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Source       *string  `json:"source,omitempty"`
	Timestamp    *string  `json:"timestamp,omitempty"`
	BatteryLevel *int     `json:"batteryLevel,omitempty"`
	IsCharging   *bool    `json:"isCharging,omitempty"`
}

// POST /v1/telemetry/location
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r.Context())
	if deviceID == "" {
		writeError(w, apperrors.Unauthorized("Device credential required"))
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, apperrors.ValidationError("latitude and longitude are required"))
		return
	}

	reading := service.Reading{
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		Accuracy:     req.Accuracy,
		Altitude:     req.Altitude,
		Speed:        req.Speed,
		Source:       req.Source,
		BatteryLevel: req.BatteryLevel,
		IsCharging:   req.IsCharging,
	}

	if req.Timestamp != nil {
		t, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			writeError(w, apperrors.InvalidInput("timestamp", "must be RFC3339"))
			return
		}
		reading.Timestamp = &t
	}

	result, err := h.telemetryService.Ingest(r.Context(), deviceID, reading)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); !ok {
			log.Error().Err(err).Str("deviceId", deviceID).Msg("telemetry ingest failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/middleware"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/service"
)

type DeviceHandler struct {
	deviceService    *service.DeviceService
	telemetryService *service.TelemetryService
}

func NewDeviceHandler(deviceService *service.DeviceService, telemetryService *service.TelemetryService) *DeviceHandler {
	return &DeviceHandler{
		deviceService:    deviceService,
		telemetryService: telemetryService,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{deviceID}", h.Get)
	r.Patch("/{deviceID}", h.Update)
	r.Delete("/{deviceID}", h.Unpair)
	r.Get("/{deviceID}/locations", h.Locations)

	return r
}

// GET /v1/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	devices, err := h.deviceService.List(r.Context(), *actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// GET /v1/devices/{deviceID}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	device, err := h.deviceService.Get(r.Context(), *actor, chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

type updateDeviceRequest struct {
	DeviceName  *string `json:"deviceName,omitempty"`
	DeviceModel *string `json:"deviceModel,omitempty"`
	OSVersion   *string `json:"osVersion,omitempty"`
	AppVersion  *string `json:"appVersion,omitempty"`
}

// PATCH /v1/devices/{deviceID}
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	device, err := h.deviceService.UpdateMetadata(r.Context(), *actor, chi.URLParam(r, "deviceID"), model.UpdateDeviceParams{
		DeviceName:  req.DeviceName,
		DeviceModel: req.DeviceModel,
		OSVersion:   req.OSVersion,
		AppVersion:  req.AppVersion,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// DELETE /v1/devices/{deviceID}
func (h *DeviceHandler) Unpair(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.deviceService.Unpair(r.Context(), *actor, chi.URLParam(r, "deviceID")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Device unpaired",
	})
}

// GET /v1/devices/{deviceID}/locations
func (h *DeviceHandler) Locations(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	deviceID := chi.URLParam(r, "deviceID")

	// Ownership check happens through the device service before any
	// history is read.
	if _, err := h.deviceService.Get(r.Context(), *actor, deviceID); err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, apperrors.InvalidInput("since", "must be RFC3339"))
			return
		}
		since = &t
	}

	result, err := h.telemetryService.History(r.Context(), deviceID, since, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

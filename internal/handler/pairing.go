package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/famtrack/tracker-server-go/internal/errors"
	"github.com/famtrack/tracker-server-go/internal/middleware"
	"github.com/famtrack/tracker-server-go/internal/model"
	"github.com/famtrack/tracker-server-go/internal/service"
)

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// Routes returns the parent-facing pairing routes; callers mount them
// behind user auth. Redeem is wired separately because the code itself is
// the credential.
func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/codes", h.IssueCode)
	r.Get("/codes/{code}/status", h.Status)

	return r
}

type issueCodeRequest struct {
	MemberUserID string  `json:"memberUserId"`
	DeviceName   string  `json:"deviceName"`
	DeviceType   string  `json:"deviceType"`
	Platform     *string `json:"platform,omitempty"`
}

// POST /v1/pairing/codes
func (h *PairingHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req issueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.pairingService.IssueCode(r.Context(), *actor, service.IssueCodeParams{
		MemberUserID: req.MemberUserID,
		DeviceName:   req.DeviceName,
		DeviceType:   model.DeviceType(req.DeviceType),
		Platform:     req.Platform,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type redeemRequest struct {
	Code string `json:"code"`
}

// POST /v1/pairing/redeem
func (h *PairingHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	result, err := h.pairingService.Redeem(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"message":     "Device paired successfully",
		"deviceToken": result.DeviceToken,
		"device":      result.Device,
	})
}

// GET /v1/pairing/codes/{code}/status
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	result, err := h.pairingService.Status(r.Context(), code)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); !ok {
			log.Error().Err(err).Msg("failed to get pairing code status")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

type MeHandler struct {
	Profiles *services.ProfileService
	Log      *zap.Logger
}

type ProfileResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	HasPin  bool         `json:"has_pin"`
}

// Get handles GET /api/me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	u, err := h.Profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, User: u, HasPin: u.HasPin()})
}

// UpdatePreferences handles PUT /api/me/preferences.
func (h *MeHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req models.Preferences
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Profiles.UpdatePreferences(r.Context(), userID, req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Preferences saved")
}

type PinRequest struct {
	Pin string `json:"pin"`
}

// SetPin handles PUT /api/me/pin.
func (h *MeHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req PinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Profiles.SetPin(r.Context(), userID, req.Pin); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "PIN saved")
}

type VerifyPinResponse struct {
	Success bool `json:"success"`
	Valid   bool `json:"valid"`
}

// VerifyPin handles POST /api/me/pin/verify.
func (h *MeHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req PinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ok, err := h.Profiles.VerifyPin(r.Context(), userID, req.Pin)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyPinResponse{Success: true, Valid: ok})
}

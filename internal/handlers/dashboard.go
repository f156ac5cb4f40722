package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

type DashboardHandler struct {
	Dashboard *services.DashboardService
	Log       *zap.Logger
}

type DashboardResponse struct {
	Success bool                `json:"success"`
	Data    *services.Dashboard `json:"data"`
}

// Get handles GET /api/dashboard?tz=.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	loc, err := loadLocation(r.URL.Query().Get("tz"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	d, err := h.Dashboard.Get(r.Context(), userID, loc)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardResponse{Success: true, Data: d})
}

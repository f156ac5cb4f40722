package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

type QuoteHandler struct {
	Quotes *services.QuoteService
	Log    *zap.Logger
}

type QuoteResponse struct {
	Success bool                 `json:"success"`
	Quote   *models.DisplayQuote `json:"quote"`
}

// Random handles GET /api/quotes/random?previous=. The quote with id
// previous is skipped when there is any other to pick.
func (h *QuoteHandler) Random(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotes.Random(r.Context(), r.URL.Query().Get("previous"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteResponse{Success: true, Quote: q})
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/metrics"
	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

type UploadHandler struct {
	Uploads *services.UploadService // nil when Cloudinary is not configured
	Log     *zap.Logger
}

type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Image handles POST /api/entries/{id}/images. The file is read from the
// multipart field "file".
func (h *UploadHandler) Image(w http.ResponseWriter, r *http.Request) {
	if h.Uploads == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		msg := "Invalid multipart form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "File size must be less than 5MB"
		}
		h.fail(w, "image", &apperr.ValidationError{Messages: []string{msg}})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, "image", &apperr.ValidationError{Messages: []string{"No file provided"}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadSize+1))
	if err != nil {
		h.fail(w, "image", err)
		return
	}

	url, err := h.Uploads.UploadImage(r.Context(), userID, chi.URLParam(r, "id"), header.Filename, data)
	if err != nil {
		h.fail(w, "image", err)
		return
	}
	metrics.Uploads.WithLabelValues("image", "ok").Inc()
	writeJSON(w, http.StatusOK, UploadResponse{Success: true, Message: "File uploaded successfully", URL: url})
}

type DrawingRequest struct {
	DataURL string `json:"data_url"`
}

// Drawing handles POST /api/entries/{id}/drawing with a PNG data URL.
func (h *UploadHandler) Drawing(w http.ResponseWriter, r *http.Request) {
	if h.Uploads == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 2*services.MaxUploadSize)
	var req DrawingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := h.Uploads.UploadDrawing(r.Context(), userID, chi.URLParam(r, "id"), req.DataURL)
	if err != nil {
		h.fail(w, "drawing", err)
		return
	}
	metrics.Uploads.WithLabelValues("drawing", "ok").Inc()
	writeJSON(w, http.StatusOK, UploadResponse{Success: true, Message: "Drawing saved", URL: url})
}

func (h *UploadHandler) fail(w http.ResponseWriter, kind string, err error) {
	outcome := "error"
	if apperr.IsValidation(err) {
		outcome = "rejected"
	}
	metrics.Uploads.WithLabelValues(kind, outcome).Inc()
	writeError(w, h.Log, err)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: status < 400, Message: message})
}

// writeError maps err onto a status code. Unexpected errors are logged and
// answered with a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Response{
			Message: "Validation failed",
			Errors:  verr.Messages,
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeMessage(w, http.StatusForbidden, "You do not have access to this entry")
	case errors.Is(err, apperr.ErrTransactionConflict):
		writeJSON(w, http.StatusConflict, Response{
			Message:   "The entry was modified concurrently, please try again",
			Retryable: true,
		})
	default:
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(r.Body).Decode(dest)
}

// loadLocation resolves an IANA zone name; empty means UTC.
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &apperr.ValidationError{Messages: []string{"Unknown time zone: " + name}}
	}
	return loc, nil
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/metrics"
	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

// EventPublisher broadcasts live events to the user's other sessions.
type EventPublisher interface {
	Publish(ctx context.Context, ev services.Event) error
}

type EntryHandler struct {
	Entries *services.EntryService
	Events  EventPublisher // optional
	Log     *zap.Logger
}

// MaxEntryBodySize caps create and update bodies. Images and drawings are
// uploaded separately, so an entry is only text and references.
const MaxEntryBodySize = 1 << 20

// EntryRequest is the body of create and update. Date accepts RFC 3339 or a
// plain YYYY-MM-DD day, which is taken as midnight in the request's tz.
type EntryRequest struct {
	Title      string         `json:"title"`
	Content    map[string]any `json:"content"`
	Mood       string         `json:"mood"`
	Images     []string       `json:"images"`
	DrawingURL *string        `json:"drawing_url"`
	Theme      string         `json:"theme"`
	Date       string         `json:"date"`
}

type SaveEntryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	EntryID string `json:"entry_id"`
}

// parseEntryDate returns the zero time for anything unparseable, which
// validation reports as an invalid date.
func parseEntryDate(s string, loc *time.Location) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t
	}
	return time.Time{}
}

func (req EntryRequest) input(loc *time.Location) models.EntryInput {
	return models.EntryInput{
		Title:      req.Title,
		Content:    req.Content,
		Mood:       req.Mood,
		Images:     req.Images,
		DrawingURL: req.DrawingURL,
		Theme:      req.Theme,
		Date:       parseEntryDate(req.Date, loc),
	}
}

// Create handles POST /api/entries?tz=.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update handles PUT /api/entries/{id}?tz=.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *EntryHandler) save(w http.ResponseWriter, r *http.Request, existingID string) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	loc, err := loadLocation(r.URL.Query().Get("tz"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxEntryBodySize)
	var req EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Entry is too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	path := "create"
	if existingID != "" {
		path = "update"
	}

	start := time.Now()
	res, err := h.Entries.Save(r.Context(), userID, req.input(loc), existingID)
	metrics.EntrySaveDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.EntrySaves.WithLabelValues(path, saveOutcome(err)).Inc()
	if err != nil {
		if apperr.IsRetryable(err) {
			h.Log.Warn("entry save gave up after conflicts", zap.String("user_id", userID), zap.String("path", path))
		}
		writeError(w, h.Log, err)
		return
	}

	h.afterSave(r.Context(), userID, res)

	status, message := http.StatusOK, "Entry updated"
	if res.Created {
		status, message = http.StatusCreated, "Entry created"
	}
	writeJSON(w, status, SaveEntryResponse{Success: true, Message: message, EntryID: res.EntryID})
}

// afterSave drops cached months and notifies the user's other sessions. Both
// are best effort; the entry is already committed.
func (h *EntryHandler) afterSave(ctx context.Context, userID string, res services.SaveResult) {
	if err := h.Entries.InvalidateMonths(ctx, userID); err != nil {
		h.Log.Warn("failed to invalidate month cache", zap.String("user_id", userID), zap.Error(err))
	}
	if h.Events == nil {
		return
	}

	ev := services.Event{Type: services.EventEntrySaved, UserID: userID, EntryID: res.EntryID, Created: res.Created}
	if res.Streak != nil {
		n := res.Streak.Streak
		ev.Streak = &n
	}
	if err := h.Events.Publish(ctx, ev); err != nil {
		h.Log.Warn("failed to publish entry event", zap.String("user_id", userID), zap.Error(err))
	}
}

func saveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsValidation(err):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrPermissionDenied):
		return "forbidden"
	case errors.Is(err, apperr.ErrTransactionConflict):
		return "conflict"
	default:
		return "error"
	}
}

type EntryResponse struct {
	Success bool          `json:"success"`
	Entry   *models.Entry `json:"entry"`
}

// Get handles GET /api/entries/{id}.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	e, err := h.Entries.GetEntry(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Entry: e})
}

type MonthResponse struct {
	Success bool                  `json:"success"`
	Year    int                   `json:"year"`
	Month   int                   `json:"month"`
	Entries []models.EntrySummary `json:"entries"`
}

// ListMonth handles GET /api/entries?year=&month=&tz=. Month is 1-12; both
// default to the current month in tz.
func (h *EntryHandler) ListMonth(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	q := r.URL.Query()

	loc, err := loadLocation(q.Get("tz"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	now := time.Now().In(loc)
	year, month := now.Year(), int(now.Month())
	var msgs []string
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			msgs = append(msgs, "Year must be a number")
		}
	}
	if v := q.Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			msgs = append(msgs, "Month must be a number")
		}
	}
	if len(msgs) > 0 {
		writeError(w, h.Log, &apperr.ValidationError{Messages: msgs})
		return
	}

	entries, err := h.Entries.EntriesForMonth(r.Context(), userID, year, time.Month(month), loc)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthResponse{Success: true, Year: year, Month: month, Entries: entries})
}

type RecentResponse struct {
	Success bool           `json:"success"`
	Entries []models.Entry `json:"entries"`
}

// Recent handles GET /api/entries/recent?limit=.
func (h *EntryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.Entries.RecentEntries(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, RecentResponse{Success: true, Entries: entries})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
	"github.com/AnshRaj112/moodiary-backend/internal/store"
	"github.com/AnshRaj112/moodiary-backend/internal/validation"
)

var (
	alice = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	bob   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// fakeSessions accepts the token "t-<uuid>".
type fakeSessions struct{}

func (fakeSessions) Validate(_ context.Context, token string) (uuid.UUID, bool, error) {
	if len(token) < 3 || token[:2] != "t-" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(token[2:])
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func tokenFor(id uuid.UUID) string { return "t-" + id.String() }

type recordedEvents struct {
	events []services.Event
}

func (r *recordedEvents) Publish(_ context.Context, ev services.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type testServer struct {
	router http.Handler
	store  *store.MemoryStore
	events *recordedEvents
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerAt(t, time.Now)
}

// newTestServerAt runs the entry handlers against a fixed clock.
func newTestServerAt(t *testing.T, now func() time.Time) *testServer {
	t.Helper()
	st := store.NewMemoryStore(5)
	profiles := services.NewProfileService(st)
	for _, id := range []uuid.UUID{alice, bob} {
		_, err := profiles.Ensure(context.Background(), id.String(), "Name", id.String()+"@example.com")
		require.NoError(t, err)
	}

	events := &recordedEvents{}
	entries := services.NewEntryService(st, validation.New(now), nil)
	entries.Now = now
	h := &EntryHandler{
		Entries: entries,
		Events:  events,
		Log:     zap.NewNop(),
	}
	me := &MeHandler{Profiles: profiles, Log: zap.NewNop()}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(fakeSessions{}))
		r.Get("/api/me", me.Get)
		r.Put("/api/me/pin", me.SetPin)
		r.Post("/api/me/pin/verify", me.VerifyPin)
		r.Get("/api/entries", h.ListMonth)
		r.Get("/api/entries/recent", h.Recent)
		r.Post("/api/entries", h.Create)
		r.Get("/api/entries/{id}", h.Get)
		r.Put("/api/entries/{id}", h.Update)
	})
	return &testServer{router: r, store: st, events: events}
}

func (s *testServer) do(t *testing.T, method, path string, user uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(user))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func validEntry() map[string]any {
	return map[string]any{
		"title":   "  A good day  ",
		"content": map[string]any{"type": "doc"},
		"mood":    "happy",
		"images":  []string{},
		"theme":   "pastel-pink",
		"date":    "2025-07-10",
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestEntries_RequireSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/entries", uuid.Nil, validEntry())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/entries/recent", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEntries_CreateThenGet(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/entries", alice, validEntry())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[SaveEntryResponse](t, w)
	assert.True(t, created.Success)
	require.NotEmpty(t, created.EntryID)

	w = s.do(t, http.MethodGet, "/api/entries/"+created.EntryID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[EntryResponse](t, w)
	assert.Equal(t, "A good day", got.Entry.Title)
	assert.Equal(t, models.MoodHappy, got.Entry.Mood)

	u, err := s.store.FindUser(context.Background(), alice.String())
	require.NoError(t, err)
	assert.Equal(t, 1, u.Streak)

	require.Len(t, s.events.events, 1)
	ev := s.events.events[0]
	assert.Equal(t, services.EventEntrySaved, ev.Type)
	assert.True(t, ev.Created)
	require.NotNil(t, ev.Streak)
	assert.Equal(t, 1, *ev.Streak)
}

func TestEntries_ValidationListsEveryMessage(t *testing.T) {
	s := newTestServer(t)

	body := validEntry()
	body["title"] = "   "
	body["mood"] = "grumpy"
	body["date"] = time.Now().AddDate(0, 0, 2).Format(time.DateOnly)

	w := s.do(t, http.MethodPost, "/api/entries", alice, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[Response](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 3)
	assert.Equal(t, "Title is required", resp.Errors[0])
	assert.Contains(t, resp.Errors[1], "Mood must be one of")
	assert.Equal(t, "Entry date cannot be in the future", resp.Errors[2])

	entries, err := s.store.ListEntries(context.Background(), store.EntryQuery{UserID: alice.String()})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, s.events.events)
}

func TestEntries_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(alice))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntries_OtherUsersEntryIsForbidden(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/entries", alice, validEntry())
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[SaveEntryResponse](t, w).EntryID

	w = s.do(t, http.MethodGet, "/api/entries/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := validEntry()
	body["title"] = "Hijacked"
	w = s.do(t, http.MethodPut, "/api/entries/"+id, bob, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/entries/"+id, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A good day", decode[EntryResponse](t, w).Entry.Title)
}

func TestEntries_UpdateKeepsStreak(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/entries", alice, validEntry())
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[SaveEntryResponse](t, w).EntryID

	body := validEntry()
	body["title"] = "Edited"
	w = s.do(t, http.MethodPut, "/api/entries/"+id, alice, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[SaveEntryResponse](t, w).EntryID)

	u, err := s.store.FindUser(context.Background(), alice.String())
	require.NoError(t, err)
	assert.Equal(t, 1, u.Streak)

	require.Len(t, s.events.events, 2)
	assert.False(t, s.events.events[1].Created)
	assert.Nil(t, s.events.events[1].Streak)
}

func TestEntries_UnknownIDIsNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/entries/not-an-id", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/entries/0123456789abcdef01234567", alice, validEntry())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntries_ListMonth(t *testing.T) {
	s := newTestServer(t)

	for _, date := range []string{"2025-06-30", "2025-07-01", "2025-07-10"} {
		body := validEntry()
		body["date"] = date
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/entries", alice, body).Code)
	}

	w := s.do(t, http.MethodGet, "/api/entries?year=2025&month=7", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[MonthResponse](t, w)
	assert.Equal(t, 7, resp.Month)
	require.Len(t, resp.Entries, 2)
	assert.True(t, resp.Entries[0].Date.Before(resp.Entries[1].Date))

	w = s.do(t, http.MethodGet, "/api/entries?year=2025&month=7", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[MonthResponse](t, w).Entries)

	w = s.do(t, http.MethodGet, "/api/entries?year=2025&month=13", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/entries?month=x", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/entries?tz=Mars/Olympus", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntries_Recent(t *testing.T) {
	s := newTestServer(t)

	for _, date := range []string{"2025-07-01", "2025-07-03", "2025-07-02"} {
		body := validEntry()
		body["date"] = date
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/entries", alice, body).Code)
	}

	w := s.do(t, http.MethodGet, "/api/entries/recent?limit=2", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RecentResponse](t, w)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, 3, resp.Entries[0].Date.Day())
	assert.Equal(t, 2, resp.Entries[1].Date.Day())
}

func TestMe_PinRoundTrip(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/me", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ProfileResponse](t, w).HasPin)

	w = s.do(t, http.MethodPut, "/api/me/pin", alice, PinRequest{Pin: "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/me/pin", alice, PinRequest{Pin: "4321"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/me/pin/verify", alice, PinRequest{Pin: "4321"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[VerifyPinResponse](t, w).Valid)

	w = s.do(t, http.MethodPost, "/api/me/pin/verify", alice, PinRequest{Pin: "0000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[VerifyPinResponse](t, w).Valid)
}

func TestEntries_DateOnlyIsTodayInCallersZone(t *testing.T) {
	// 08:00 on 10 July in Tokyo, still 9 July in UTC.
	s := newTestServerAt(t, func() time.Time { return time.Date(2025, time.July, 9, 23, 0, 0, 0, time.UTC) })

	body := validEntry()
	body["date"] = "2025-07-10"

	w := s.do(t, http.MethodPost, "/api/entries", alice, body)
	require.Equal(t, http.StatusBadRequest, w.Code, "without tz the day is read in UTC")

	w = s.do(t, http.MethodPost, "/api/entries?tz=Asia/Tokyo", alice, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/entries?year=2025&month=7&tz=Asia/Tokyo", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[MonthResponse](t, w).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Date.In(time.FixedZone("JST", 9*3600)).Day())
}

func TestEntries_DateOnlyLandsInCallersMonth(t *testing.T) {
	s := newTestServerAt(t, func() time.Time { return time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC) })

	body := validEntry()
	body["date"] = "2025-07-01"
	w := s.do(t, http.MethodPost, "/api/entries?tz=America/Los_Angeles", alice, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/entries?year=2025&month=7&tz=America/Los_Angeles", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[MonthResponse](t, w).Entries, 1)

	w = s.do(t, http.MethodGet, "/api/entries?year=2025&month=6&tz=America/Los_Angeles", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[MonthResponse](t, w).Entries)
}

func TestEntries_UnknownZoneOnSave(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/entries?tz=Mars/Olympus", alice, validEntry())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.events.events)
}

func TestEntries_BodyTooLarge(t *testing.T) {
	s := newTestServer(t)

	body := validEntry()
	body["content"] = map[string]any{"text": strings.Repeat("x", MaxEntryBodySize)}
	w := s.do(t, http.MethodPost, "/api/entries", alice, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	entries, err := s.store.ListEntries(context.Background(), store.EntryQuery{UserID: alice.String()})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

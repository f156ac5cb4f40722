package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestLimiterSet_PerIPBurst(t *testing.T) {
	s := newLimiterSet(rate.Every(time.Hour), 2)

	assert.True(t, s.allow("1.1.1.1"))
	assert.True(t, s.allow("1.1.1.1"))
	assert.False(t, s.allow("1.1.1.1"))
	assert.True(t, s.allow("2.2.2.2"))
}

func TestLoginRateLimit_OnlyCredentialPaths(t *testing.T) {
	h := LoginRateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/api/entries"))
	}
	assert.Equal(t, http.StatusOK, do("/api/me/pin/verify"))
	assert.Equal(t, http.StatusOK, do("/api/me/pin/verify"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/me/pin/verify"))
}

func TestHostCheck(t *testing.T) {
	h := HostCheck("api.moodiary.app")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "http://api.moodiary.app:443/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "http://evil.example/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

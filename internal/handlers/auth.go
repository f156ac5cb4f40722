package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
	"github.com/AnshRaj112/moodiary-backend/pkg/utils"
)

// AccountStore creates and checks sign-in identities.
type AccountStore interface {
	Create(ctx context.Context, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
}

// SessionManager issues and revokes session tokens.
type SessionManager interface {
	Create(ctx context.Context, userID uuid.UUID) (string, error)
	Refresh(ctx context.Context, token string) error
	Invalidate(ctx context.Context, token string) error
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

type AuthHandler struct {
	Accounts AccountStore
	Sessions SessionManager
	Profiles *services.ProfileService
	Log      *zap.Logger
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user,omitempty"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	var msgs []string
	if req.Name == "" {
		msgs = append(msgs, "Name is required")
	}
	if !strings.Contains(req.Email, "@") {
		msgs = append(msgs, "A valid email is required")
	}
	if len(req.Password) < utils.MinPasswordLength {
		msgs = append(msgs, "Password must be at least 8 characters")
	}
	if len(msgs) > 0 {
		writeError(w, h.Log, &apperr.ValidationError{Messages: msgs})
		return
	}

	acc, err := h.Accounts.Create(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrEmailTaken) {
		writeMessage(w, http.StatusConflict, "An account with this email already exists")
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.startSession(w, r, acc, req.Name, http.StatusCreated, "Account created")
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, h.Log, &apperr.ValidationError{Messages: []string{"Email and password are required"}})
		return
	}

	acc, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	name, _, _ := strings.Cut(acc.Email, "@")
	h.startSession(w, r, acc, name, http.StatusOK, "Signed in")
}

// startSession makes sure the diary profile exists and issues a token.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, acc *models.Account, name string, status int, message string) {
	profile, err := h.Profiles.Ensure(r.Context(), acc.ID, name, acc.Email)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	uid, err := uuid.Parse(acc.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	token, err := h.Sessions.Create(r.Context(), uid)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	writeJSON(w, status, AuthResponse{Success: true, Message: message, Token: token, User: profile})
}

// Refresh handles POST /api/auth/refresh, extending the current session.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Refresh(r.Context(), middleware.BearerToken(r)); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Session refreshed")
}

// Signout handles POST /api/auth/signout. With ?all=true every session of
// the user is ended, not just this one.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	var err error
	if r.URL.Query().Get("all") == "true" {
		userID, _ := middleware.UserIDFromContext(r.Context())
		var uid uuid.UUID
		if uid, err = uuid.Parse(userID); err == nil {
			err = h.Sessions.InvalidateUser(r.Context(), uid)
		}
	} else {
		err = h.Sessions.Invalidate(r.Context(), middleware.BearerToken(r))
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Signed out")
}

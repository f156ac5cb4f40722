package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/pkg/utils"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AccountService manages sign-in identities in the PostgreSQL accounts table.
type AccountService struct {
	DB *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{DB: db}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account with an argon2id password hash.
func (s *AccountService) Create(ctx context.Context, email, password string) (*models.Account, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	acc := &models.Account{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
		PasswordHash: hash,
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
	`, acc.ID, acc.Email, acc.PasswordHash, acc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return acc, nil
}

// Authenticate returns the active account matching email and password.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	var acc models.Account
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, is_active
		FROM accounts WHERE email = $1 AND is_active = TRUE
	`, NormalizeEmail(email)).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.CreatedAt, &acc.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, acc.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return &acc, nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/store"
	"github.com/AnshRaj112/moodiary-backend/pkg/utils"
)

// ProfileService manages the diary profile: preferences and the lock PIN.
// Streak fields are only ever written by EntryService.
type ProfileService struct {
	Store store.Store
}

func NewProfileService(st store.Store) *ProfileService {
	return &ProfileService{Store: st}
}

// Ensure creates the profile on first sign-in and returns it.
func (s *ProfileService) Ensure(ctx context.Context, userID, name, email string) (*models.User, error) {
	if _, err := s.Store.CreateUserIfMissing(ctx, models.NewUser(userID, name, email, time.Now().UTC())); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.Store.FindUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return u, nil
}

func (s *ProfileService) UpdatePreferences(ctx context.Context, userID string, p models.Preferences) error {
	if !models.IsTheme(p.Theme) {
		return &apperr.ValidationError{Messages: []string{
			"Theme must be one of: " + strings.Join(models.ThemeNames, ", "),
		}}
	}
	return notFound(s.Store.UpdatePreferences(ctx, userID, p), "user", userID)
}

func (s *ProfileService) SetPin(ctx context.Context, userID, pin string) error {
	if !utils.ValidPin(pin) {
		return &apperr.ValidationError{Messages: []string{
			fmt.Sprintf("PIN must be %d to %d digits", utils.MinPinLength, utils.MaxPinLength),
		}}
	}
	hash, err := utils.HashPassword(pin)
	if err != nil {
		return err
	}
	return notFound(s.Store.SetPinHash(ctx, userID, hash), "user", userID)
}

// VerifyPin reports whether pin unlocks the user's diary.
func (s *ProfileService) VerifyPin(ctx context.Context, userID, pin string) (bool, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !u.HasPin() {
		return false, &apperr.ValidationError{Messages: []string{"No PIN is set"}}
	}
	return utils.VerifyPassword(pin, u.PinHash)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/store"
	"github.com/AnshRaj112/moodiary-backend/internal/streak"
	"github.com/AnshRaj112/moodiary-backend/internal/validation"
)

const (
	DefaultRecentEntries = 5
	MaxRecentEntries     = 50
)

// EntryService saves and reads diary entries. Saving a new entry also advances
// the owner's streak in the same transaction.
type EntryService struct {
	Store     store.Store
	Validator *validation.Validator
	Now       func() time.Time

	// Months caches calendar month summaries. Nil disables caching.
	Months MonthCache
}

func NewEntryService(st store.Store, v *validation.Validator, months MonthCache) *EntryService {
	return &EntryService{
		Store:     st,
		Validator: v,
		Now:       time.Now,
		Months:    months,
	}
}

func (s *EntryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// SaveResult describes a committed save.
type SaveResult struct {
	EntryID string
	Created bool
	// Streak is the state written by the create path; nil for updates.
	Streak *models.StreakState
}

// SaveEntry validates in and writes it. With an empty existingEntryID a new
// entry is created and the user's streak recomputed; otherwise the existing
// entry is overwritten and the streak left alone. It returns the entry id.
func (s *EntryService) SaveEntry(ctx context.Context, userID string, in models.EntryInput, existingEntryID string) (string, error) {
	res, err := s.Save(ctx, userID, in, existingEntryID)
	if err != nil {
		return "", err
	}
	return res.EntryID, nil
}

// Save is SaveEntry reporting what was committed.
func (s *EntryService) Save(ctx context.Context, userID string, in models.EntryInput, existingEntryID string) (SaveResult, error) {
	if err := s.Validator.ValidateEntryInput(in); err != nil {
		return SaveResult{}, err
	}
	mood, err := models.ParseMood(in.Mood)
	if err != nil {
		return SaveResult{}, &apperr.ValidationError{Messages: []string{err.Error()}}
	}

	now := s.now()
	apply := func(e *models.Entry) {
		e.Title = strings.TrimSpace(in.Title)
		e.Content = in.Content
		e.Mood = mood
		e.Images = in.Images
		if e.Images == nil {
			e.Images = []string{}
		}
		e.DrawingURL = in.DrawingURL
		e.Theme = in.Theme
		e.Date = in.Date
		e.UpdatedAt = now
	}

	if existingEntryID != "" {
		return s.updateEntry(ctx, userID, existingEntryID, apply)
	}
	return s.createEntry(ctx, userID, in.Date, now, apply)
}

func (s *EntryService) updateEntry(ctx context.Context, userID, entryID string, apply func(*models.Entry)) (SaveResult, error) {
	id, err := primitive.ObjectIDFromHex(entryID)
	if err != nil {
		return SaveResult{}, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound)
	}

	err = s.Store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return notFound(err, "entry", entryID)
		}
		if e.UserID != userID {
			return fmt.Errorf("entry %s: %w", entryID, apperr.ErrPermissionDenied)
		}
		apply(e)
		return notFound(tx.ReplaceEntry(ctx, e), "entry", entryID)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{EntryID: entryID}, nil
}

func (s *EntryService) createEntry(ctx context.Context, userID string, date, now time.Time, apply func(*models.Entry)) (SaveResult, error) {
	var (
		entryID primitive.ObjectID
		state   models.StreakState
	)
	// state is reassigned on every attempt, so after commit it holds what was written.
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		entryID = tx.NewEntryID()
		e := &models.Entry{ID: entryID, UserID: userID, CreatedAt: now}
		apply(e)
		if err := tx.InsertEntry(ctx, e); err != nil {
			return err
		}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}
		res := streak.Compute(streak.FromPtr(u.LastEntryDate), date, u.Streak)
		last := date
		state = models.StreakState{
			Streak:        res.NewStreak,
			LongestStreak: max(u.LongestStreak, res.NewStreak),
			LastEntryDate: &last,
		}
		return notFound(tx.UpdateStreak(ctx, userID, state), "user", userID)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{EntryID: entryID.Hex(), Created: true, Streak: &state}, nil
}

// notFound translates a store miss into apperr.ErrNotFound and passes every
// other error through.
func notFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNoDocument) {
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return err
}

// GetEntry returns the entry if it belongs to userID.
func (s *EntryService) GetEntry(ctx context.Context, entryID, userID string) (*models.Entry, error) {
	id, err := primitive.ObjectIDFromHex(entryID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound)
	}
	e, err := s.Store.FindEntry(ctx, id)
	if err != nil {
		return nil, notFound(err, "entry", entryID)
	}
	if e.UserID != userID {
		return nil, fmt.Errorf("entry %s: %w", entryID, apperr.ErrPermissionDenied)
	}
	return e, nil
}

// EntriesForMonth lists the summaries of the user's entries dated inside the
// given calendar month of loc, oldest first.
func (s *EntryService) EntriesForMonth(ctx context.Context, userID string, year int, month time.Month, loc *time.Location) ([]models.EntrySummary, error) {
	if month < time.January || month > time.December {
		return nil, &apperr.ValidationError{Messages: []string{"Month must be between 1 and 12"}}
	}
	if loc == nil {
		loc = time.UTC
	}

	key := fmt.Sprintf("%04d-%02d:%s", year, int(month), loc.String())
	var slot string
	if s.Months != nil {
		cached, sl, ok := s.Months.Get(ctx, userID, key)
		if ok {
			return cached, nil
		}
		slot = sl
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	entries, err := s.Store.ListEntries(ctx, store.EntryQuery{
		UserID:    userID,
		From:      from,
		To:        to,
		Ascending: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.EntrySummary, 0, len(entries))
	for i := range entries {
		out = append(out, entries[i].Summary())
	}
	if s.Months != nil {
		s.Months.Set(ctx, slot, out)
	}
	return out, nil
}

// RecentEntries returns the user's newest entries. limit <= 0 means
// DefaultRecentEntries; it is capped at MaxRecentEntries.
func (s *EntryService) RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentEntries
	}
	if limit > MaxRecentEntries {
		limit = MaxRecentEntries
	}
	return s.Store.ListEntries(ctx, store.EntryQuery{UserID: userID, Limit: limit})
}

// InvalidateMonths drops every cached month summary of userID.
func (s *EntryService) InvalidateMonths(ctx context.Context, userID string) error {
	if s.Months == nil {
		return nil
	}
	return s.Months.Invalidate(ctx, userID)
}

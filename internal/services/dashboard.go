package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/streak"
)

// Dashboard is the home screen summary.
type Dashboard struct {
	Streak        int                   `json:"streak"`
	LongestStreak int                   `json:"longest_streak"`
	LastEntryDate *time.Time            `json:"last_entry_date"`
	WroteToday    bool                  `json:"wrote_today"`
	RecentEntries []models.EntrySummary `json:"recent_entries"`
	Quote         *models.DisplayQuote  `json:"quote"`
}

type DashboardService struct {
	Profiles *ProfileService
	Entries  *EntryService
	Quotes   *QuoteService
	Now      func() time.Time
}

func NewDashboardService(p *ProfileService, e *EntryService, q *QuoteService) *DashboardService {
	return &DashboardService{Profiles: p, Entries: e, Quotes: q, Now: time.Now}
}

// Get builds the dashboard for userID. "Today" is taken in loc.
func (s *DashboardService) Get(ctx context.Context, userID string, loc *time.Location) (*Dashboard, error) {
	if loc == nil {
		loc = time.UTC
	}
	u, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.Entries.RecentEntries(ctx, userID, DefaultRecentEntries)
	if err != nil {
		return nil, err
	}
	quote, err := s.Quotes.Random(ctx, "")
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Streak:        u.Streak,
		LongestStreak: u.LongestStreak,
		LastEntryDate: u.LastEntryDate,
		RecentEntries: make([]models.EntrySummary, 0, len(recent)),
		Quote:         quote,
	}
	if u.LastEntryDate != nil {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		d.WroteToday = streak.DaysBetween(*u.LastEntryDate, now().In(loc)) == 0
	}
	for i := range recent {
		d.RecentEntries = append(d.RecentEntries, recent[i].Summary())
	}
	return d, nil
}

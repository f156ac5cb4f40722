package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
	"github.com/AnshRaj112/moodiary-backend/internal/store"
	"github.com/AnshRaj112/moodiary-backend/internal/validation"
)

var (
	testNow   = time.Date(2025, time.July, 10, 15, 0, 0, 0, time.UTC)
	today     = time.Date(2025, time.July, 10, 9, 30, 0, 0, time.UTC)
	yesterday = today.AddDate(0, 0, -1)
)

func newTestEntryService(t *testing.T) (*EntryService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(5)
	clock := func() time.Time { return testNow }
	svc := NewEntryService(st, validation.New(clock), nil)
	svc.Now = clock
	return svc, st
}

func seedProfile(t *testing.T, st store.Store, userID string, state models.StreakState) {
	t.Helper()
	ctx := context.Background()
	_, err := st.CreateUserIfMissing(ctx, models.NewUser(userID, "Name", userID+"@example.com", testNow))
	require.NoError(t, err)
	require.NoError(t, st.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateStreak(ctx, userID, state)
	}))
}

func entryInput(title string) models.EntryInput {
	return models.EntryInput{
		Title:   title,
		Content: map[string]any{"type": "doc", "content": []any{}},
		Mood:    "calm",
		Images:  []string{"https://res.cloudinary.com/demo/image/upload/a.png"},
		Theme:   "mint-green",
		Date:    today,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestSaveEntry_CreateAdvancesStreak(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "userA", models.StreakState{Streak: 3, LongestStreak: 5, LastEntryDate: ptr(yesterday)})

	id, err := svc.SaveEntry(ctx, "userA", entryInput("  Beach day  "), "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	u, err := st.FindUser(ctx, "userA")
	require.NoError(t, err)
	assert.Equal(t, 4, u.Streak)
	assert.Equal(t, 5, u.LongestStreak)
	require.NotNil(t, u.LastEntryDate)
	assert.True(t, u.LastEntryDate.Equal(today))

	e, err := svc.GetEntry(ctx, id, "userA")
	require.NoError(t, err)
	assert.Equal(t, "userA", e.UserID)
	assert.Equal(t, "Beach day", e.Title)
	assert.Equal(t, models.MoodCalm, e.Mood)
	assert.Equal(t, "mint-green", e.Theme)
	assert.True(t, e.CreatedAt.Equal(testNow))
	assert.True(t, e.UpdatedAt.Equal(testNow))
}

func TestSaveEntry_CreateRaisesLongestStreak(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{Streak: 5, LongestStreak: 5, LastEntryDate: ptr(yesterday)})

	_, err := svc.SaveEntry(ctx, "u", entryInput("t"), "")
	require.NoError(t, err)

	u, err := st.FindUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 6, u.Streak)
	assert.Equal(t, 6, u.LongestStreak)
}

func TestSaveEntry_StreakTransitions(t *testing.T) {
	tests := []struct {
		name       string
		state      models.StreakState
		wantStreak int
	}{
		{"first entry", models.StreakState{}, 1},
		{"same day keeps streak", models.StreakState{Streak: 2, LongestStreak: 4, LastEntryDate: ptr(today.Add(-2 * time.Hour))}, 2},
		{"gap resets", models.StreakState{Streak: 9, LongestStreak: 9, LastEntryDate: ptr(today.AddDate(0, 0, -3))}, 1},
		{"last entry after new date resets", models.StreakState{Streak: 4, LongestStreak: 4, LastEntryDate: ptr(today.AddDate(0, 0, 2))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, st := newTestEntryService(t)
			seedProfile(t, st, "u", tt.state)

			_, err := svc.SaveEntry(ctx, "u", entryInput("t"), "")
			require.NoError(t, err)

			u, err := st.FindUser(ctx, "u")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, u.Streak)
			assert.Equal(t, max(tt.state.LongestStreak, tt.wantStreak), u.LongestStreak)
		})
	}
}

func TestSaveEntry_TitleLength(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})

	_, err := svc.SaveEntry(ctx, "u", entryInput(strings.Repeat("a", 200)), "")
	require.NoError(t, err)

	_, err = svc.SaveEntry(ctx, "u", entryInput(strings.Repeat("a", 201)), "")
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "too long")
}

func TestSaveEntry_Moods(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})

	for _, mood := range models.MoodNames() {
		in := entryInput("t")
		in.Mood = mood
		id, err := svc.SaveEntry(ctx, "u", in, "")
		require.NoError(t, err, mood)

		e, err := svc.GetEntry(ctx, id, "u")
		require.NoError(t, err)
		assert.Equal(t, mood, e.Mood.String())
	}

	in := entryInput("t")
	in.Mood = "excited"
	_, err := svc.SaveEntry(ctx, "u", in, "")
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "Mood must be one of")
}

func TestSaveEntry_ValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})

	in := entryInput("")
	in.Date = testNow.Add(time.Hour)
	_, err := svc.SaveEntry(ctx, "u", in, "")
	require.Error(t, err)

	entries, err := st.ListEntries(ctx, store.EntryQuery{UserID: "u"})
	require.NoError(t, err)
	assert.Empty(t, entries)
	u, err := st.FindUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Streak)
	assert.Nil(t, u.LastEntryDate)
}

func TestSaveEntry_CreateWithoutProfile(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)

	_, err := svc.SaveEntry(ctx, "ghost", entryInput("t"), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	entries, err := st.ListEntries(ctx, store.EntryQuery{UserID: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveEntry_UpdateOtherUsersEntry(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "userA", models.StreakState{})
	seedProfile(t, st, "userB", models.StreakState{Streak: 2, LongestStreak: 2, LastEntryDate: ptr(yesterday)})

	id, err := svc.SaveEntry(ctx, "userA", entryInput("mine"), "")
	require.NoError(t, err)
	before, err := svc.GetEntry(ctx, id, "userA")
	require.NoError(t, err)

	_, err = svc.SaveEntry(ctx, "userB", entryInput("stolen"), id)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	after, err := svc.GetEntry(ctx, id, "userA")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	u, err := st.FindUser(ctx, "userB")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Streak)

	_, err = svc.GetEntry(ctx, id, "userB")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestSaveEntry_UpdateMissingEntry(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})

	_, err := svc.SaveEntry(ctx, "u", entryInput("t"), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.SaveEntry(ctx, "u", entryInput("t"), "not-an-id")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveEntry_UpdateIsIdempotentAndKeepsStreak(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{Streak: 3, LongestStreak: 5, LastEntryDate: ptr(yesterday)})

	id, err := svc.SaveEntry(ctx, "u", entryInput("draft"), "")
	require.NoError(t, err)
	created, err := svc.GetEntry(ctx, id, "u")
	require.NoError(t, err)
	stateAfterCreate, err := st.FindUser(ctx, "u")
	require.NoError(t, err)

	in := entryInput("final")
	in.Mood = "happy"
	in.Images = nil
	in.Date = yesterday

	svc.Now = func() time.Time { return testNow.Add(time.Minute) }
	gotID, err := svc.SaveEntry(ctx, "u", in, id)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	first, err := svc.GetEntry(ctx, id, "u")
	require.NoError(t, err)

	gotID, err = svc.SaveEntry(ctx, "u", in, id)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	second, err := svc.GetEntry(ctx, id, "u")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "final", second.Title)
	assert.Equal(t, models.MoodHappy, second.Mood)
	assert.Equal(t, []string{}, second.Images)
	assert.True(t, second.Date.Equal(yesterday))
	assert.True(t, second.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, second.UpdatedAt.Equal(testNow.Add(time.Minute)))

	u, err := st.FindUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, stateAfterCreate.StreakState, u.StreakState)
}

func TestSaveEntry_ConcurrentCreatesDoNotLoseStreakUpdates(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	// Retry budget large enough that no caller gives up.
	svc.Store = store.NewMemoryStore(100)
	st = svc.Store.(*store.MemoryStore)
	seedProfile(t, st, "u", models.StreakState{Streak: 1, LongestStreak: 1, LastEntryDate: ptr(yesterday)})

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SaveEntry(ctx, "u", entryInput(fmt.Sprintf("entry %d", i)), "")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	entries, err := st.ListEntries(ctx, store.EntryQuery{UserID: "u"})
	require.NoError(t, err)
	assert.Len(t, entries, writers)

	// The first commit moves yesterday -> today; every later one is same-day.
	u, err := st.FindUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Streak)
	assert.Equal(t, 2, u.LongestStreak)
}

func TestEntriesForMonth(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})
	seedProfile(t, st, "other", models.StreakState{})

	save := func(userID, title string, date time.Time) {
		in := entryInput(title)
		in.Date = date
		_, err := svc.SaveEntry(ctx, userID, in, "")
		require.NoError(t, err)
	}
	save("u", "june", time.Date(2025, time.June, 30, 23, 59, 0, 0, time.UTC))
	save("u", "late", time.Date(2025, time.July, 9, 8, 0, 0, 0, time.UTC))
	save("u", "early", time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	save("other", "not mine", time.Date(2025, time.July, 2, 0, 0, 0, 0, time.UTC))

	got, err := svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Title)
	assert.Equal(t, "late", got[1].Title)
	assert.Equal(t, models.MoodCalm, got[0].Mood)

	// 2025-06-30 23:59 UTC is already July 1st in Tokyo.
	tokyo := time.FixedZone("JST", 9*60*60)
	got, err = svc.EntriesForMonth(ctx, "u", 2025, time.July, tokyo)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "june", got[0].Title)

	got, err = svc.EntriesForMonth(ctx, "u", 2025, time.March, time.UTC)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.EntriesForMonth(ctx, "u", 2025, 13, time.UTC)
	var verr *apperr.ValidationError
	assert.True(t, errors.As(err, &verr))
}

// mapMonthCache mirrors RedisMonthCache: slots are keyed by a per-user
// generation that Invalidate bumps.
type mapMonthCache struct {
	data        map[string][]models.EntrySummary
	gens        map[string]int
	invalidated int

	// beforeSet runs at the start of Set, between the store query and the write.
	beforeSet func()
}

func newMapMonthCache() *mapMonthCache {
	return &mapMonthCache{data: map[string][]models.EntrySummary{}, gens: map[string]int{}}
}

func (c *mapMonthCache) Get(_ context.Context, userID, month string) ([]models.EntrySummary, string, bool) {
	slot := fmt.Sprintf("%s|%d|%s", userID, c.gens[userID], month)
	v, ok := c.data[slot]
	return v, slot, ok
}

func (c *mapMonthCache) Set(_ context.Context, slot string, v []models.EntrySummary) {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	c.data[slot] = v
}

func (c *mapMonthCache) Invalidate(_ context.Context, userID string) error {
	c.invalidated++
	c.gens[userID]++
	return nil
}

func TestEntriesForMonth_UsesCache(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	cache := newMapMonthCache()
	svc.Months = cache
	seedProfile(t, st, "u", models.StreakState{})

	got, err := svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, cache.data, 1)

	_, err = svc.SaveEntry(ctx, "u", entryInput("t"), "")
	require.NoError(t, err)

	got, err = svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, got, "stale until invalidated")

	require.NoError(t, svc.InvalidateMonths(ctx, "u"))
	got, err = svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, cache.invalidated)
}

func TestEntriesForMonth_SaveDuringMissIsNotMasked(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	cache := newMapMonthCache()
	svc.Months = cache
	seedProfile(t, st, "u", models.StreakState{})

	// The month is queried empty, then a save commits and invalidates before
	// the empty result reaches the cache.
	cache.beforeSet = func() {
		_, err := svc.SaveEntry(ctx, "u", entryInput("written meanwhile"), "")
		require.NoError(t, err)
		require.NoError(t, svc.InvalidateMonths(ctx, "u"))
	}
	got, err := svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.EntriesForMonth(ctx, "u", 2025, time.July, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "written meanwhile", got[0].Title)
}

func TestRecentEntries(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{})

	for i := 0; i < 7; i++ {
		in := entryInput(fmt.Sprintf("day %d", i))
		in.Date = time.Date(2025, time.July, 1+i, 12, 0, 0, 0, time.UTC)
		_, err := svc.SaveEntry(ctx, "u", in, "")
		require.NoError(t, err)
	}

	got, err := svc.RecentEntries(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultRecentEntries)
	assert.Equal(t, "day 6", got[0].Title)
	assert.Equal(t, "day 2", got[4].Title)

	got, err = svc.RecentEntries(ctx, "u", 1000)
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestSave_ReportsCommittedStreak(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestEntryService(t)
	seedProfile(t, st, "u", models.StreakState{Streak: 2, LongestStreak: 4, LastEntryDate: ptr(yesterday)})

	res, err := svc.Save(ctx, "u", entryInput("created"), "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 3, res.Streak.Streak)
	assert.Equal(t, 4, res.Streak.LongestStreak)

	u, err := st.FindUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, u.StreakState.Streak, res.Streak.Streak)

	res, err = svc.Save(ctx, "u", entryInput("edited"), res.EntryID)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Nil(t, res.Streak)
}

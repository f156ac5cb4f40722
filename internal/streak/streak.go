// Package streak holds the daily writing streak rule.
//
// Compute is pure: no clock, no I/O. Dates are compared by calendar day in the
// location of the current date, so a last entry written at 08:00 and a new one
// at 14:30 on the same day count as the same day.
package streak

import "time"

// LastEntry is the date of the user's most recent entry, or none when the user
// has never written. The zero value means none.
type LastEntry struct {
	at  time.Time
	set bool
}

// Never is the LastEntry of a user without entries.
func Never() LastEntry { return LastEntry{} }

// On returns a LastEntry at t.
func On(t time.Time) LastEntry { return LastEntry{at: t, set: true} }

// FromPtr converts the stored, nullable form.
func FromPtr(t *time.Time) LastEntry {
	if t == nil {
		return Never()
	}
	return On(*t)
}

// Time returns the date and whether one is set.
func (l LastEntry) Time() (time.Time, bool) { return l.at, l.set }

// Result is the outcome of Compute.
type Result struct {
	NewStreak int
}

// Compute returns the streak after writing an entry dated current.
//
//   - no previous entry: 1
//   - same calendar day: currentStreak, unchanged (0 stays 0)
//   - previous calendar day: currentStreak + 1
//   - anything else, including a current date before the last entry: 1
func Compute(last LastEntry, current time.Time, currentStreak int) Result {
	lastAt, ok := last.Time()
	if !ok {
		return Result{NewStreak: 1}
	}

	switch DaysBetween(lastAt, current) {
	case 0:
		return Result{NewStreak: currentStreak}
	case 1:
		return Result{NewStreak: currentStreak + 1}
	default:
		return Result{NewStreak: 1}
	}
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from `from` to `to`, judged
// in to's location. Negative when from is later than to.
func DaysBetween(from, to time.Time) int {
	from = from.In(to.Location())
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	// UTC midnights avoid DST-length days skewing the division.
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

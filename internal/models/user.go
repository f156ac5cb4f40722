package models

import (
	"time"
)

const DefaultTheme = "pastel-pink"

// ThemeNames lists the diary themes a user can pick.
var ThemeNames = []string{"pastel-pink", "midnight-blue", "soft-yellow", "mint-green", "cloud-white"}

// IsTheme reports whether name is one of ThemeNames.
func IsTheme(name string) bool {
	for _, t := range ThemeNames {
		if t == name {
			return true
		}
	}
	return false
}

// StreakState is the per-user streak bookkeeping. LastEntryDate is nil until
// the user writes their first entry.
type StreakState struct {
	Streak        int        `bson:"streak" json:"streak"`
	LongestStreak int        `bson:"longest_streak" json:"longest_streak"`
	LastEntryDate *time.Time `bson:"last_entry_date" json:"last_entry_date"`
}

// User is the diary profile of an account. ID is the account id.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`

	StreakState `bson:",inline"`

	Theme    string `bson:"theme" json:"theme"`
	DarkMode bool   `bson:"dark_mode" json:"dark_mode"`
	PinHash  string `bson:"pin_hash,omitempty" json:"-"` // never returned
}

// HasPin reports whether a diary lock PIN is set.
func (u *User) HasPin() bool { return u.PinHash != "" }

// NewUser returns a fresh profile with the default streak and preferences.
func NewUser(id, name, email string, now time.Time) *User {
	return &User{
		ID:        id,
		CreatedAt: now,
		Name:      name,
		Email:     email,
		Theme:     DefaultTheme,
	}
}

// Preferences are the user-editable display settings.
type Preferences struct {
	Theme    string `bson:"theme" json:"theme"`
	DarkMode bool   `bson:"dark_mode" json:"dark_mode"`
}

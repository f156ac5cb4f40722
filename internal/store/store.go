// Package store is the document store behind the diary: entries, user
// profiles and quotes.
//
// Writes that couple an entry with its owner's streak go through
// RunTransaction. Implementations give each transaction snapshot reads and
// detect conflicting concurrent writes at commit; a conflicting transaction is
// re-run a bounded number of times before apperr.ErrTransactionConflict is
// returned. Nothing is written when the transaction function returns an error.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

// ErrNoDocument is returned when a looked-up document does not exist.
var ErrNoDocument = errors.New("store: no document")

// DefaultMaxTxAttempts is used when a store is built with a non-positive attempt budget.
const DefaultMaxTxAttempts = 5

// Tx is the view of the store inside a transaction. Its methods must only be
// called with the context handed to the transaction function.
type Tx interface {
	NewEntryID() primitive.ObjectID
	GetEntry(ctx context.Context, id primitive.ObjectID) (*models.Entry, error)
	InsertEntry(ctx context.Context, e *models.Entry) error
	ReplaceEntry(ctx context.Context, e *models.Entry) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateStreak(ctx context.Context, userID string, s models.StreakState) error
}

// TxFunc is run by RunTransaction, possibly more than once.
type TxFunc func(ctx context.Context, tx Tx) error

// EntryQuery selects one user's entries by date. Zero From/To leave that side
// open; Limit <= 0 means no limit.
type EntryQuery struct {
	UserID    string
	From      time.Time
	To        time.Time
	Ascending bool
	Limit     int
}

// Store is the document store.
type Store interface {
	RunTransaction(ctx context.Context, fn TxFunc) error

	FindEntry(ctx context.Context, id primitive.ObjectID) (*models.Entry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]models.Entry, error)

	FindUser(ctx context.Context, userID string) (*models.User, error)
	// CreateUserIfMissing inserts u unless a profile with the same id exists.
	// It reports whether u was inserted.
	CreateUserIfMissing(ctx context.Context, u *models.User) (bool, error)
	UpdatePreferences(ctx context.Context, userID string, p models.Preferences) error
	SetPinHash(ctx context.Context, userID, hash string) error

	ListQuotes(ctx context.Context) ([]models.Quote, error)

	EnsureIndexes(ctx context.Context) error
}

func (q EntryQuery) matches(e *models.Entry) bool {
	if e.UserID != q.UserID {
		return false
	}
	if !q.From.IsZero() && e.Date.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Date.After(q.To) {
		return false
	}
	return true
}

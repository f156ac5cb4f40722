package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/metrics"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

var errWriteConflict = errors.New("memory store: write conflict")

type docKind uint8

const (
	kindEntry docKind = iota + 1
	kindUser
)

type docKey struct {
	kind docKind
	id   string
}

type entryDoc struct {
	entry   models.Entry
	version uint64
}

type userDoc struct {
	user    models.User
	version uint64
}

// MemoryStore is an in-process Store. Transactions are optimistic: reads record
// the version they saw, writes are buffered, and commit fails with a conflict
// if any read document changed in the meantime. The mutex is only held for a
// single read or for one commit, never across the transaction function.
type MemoryStore struct {
	mu          sync.Mutex
	clock       uint64
	entries     map[primitive.ObjectID]*entryDoc
	users       map[string]*userDoc
	quotes      []models.Quote
	maxAttempts int
}

// NewMemoryStore returns an empty store that re-runs a conflicting
// transaction up to maxAttempts times in total.
func NewMemoryStore(maxAttempts int) *MemoryStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxTxAttempts
	}
	return &MemoryStore{
		entries:     make(map[primitive.ObjectID]*entryDoc),
		users:       make(map[string]*userDoc),
		maxAttempts: maxAttempts,
	}
}

// SetQuotes replaces the quote collection.
func (s *MemoryStore) SetQuotes(quotes []models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append([]models.Quote(nil), quotes...)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memoryTx{
			s:            s,
			reads:        make(map[docKey]uint64),
			entryWrites:  make(map[primitive.ObjectID]*pendingEntry),
			streakWrites: make(map[string]models.StreakState),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		err := s.commit(tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errWriteConflict) {
			return err
		}
		metrics.StoreTxRetries.WithLabelValues("memory").Inc()
	}
	return fmt.Errorf("memory store: gave up after %d attempts: %w", s.maxAttempts, apperr.ErrTransactionConflict)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range tx.reads {
		if s.versionLocked(key) != seen {
			return errWriteConflict
		}
	}
	for id, w := range tx.entryWrites {
		_, exists := s.entries[id]
		if w.insert && exists {
			return errWriteConflict
		}
		if !w.insert && !exists {
			return fmt.Errorf("replace entry %s: %w", id.Hex(), ErrNoDocument)
		}
	}
	for userID := range tx.streakWrites {
		if _, ok := s.users[userID]; !ok {
			return fmt.Errorf("update user %s: %w", userID, ErrNoDocument)
		}
	}

	for id, w := range tx.entryWrites {
		s.clock++
		s.entries[id] = &entryDoc{entry: w.entry, version: s.clock}
	}
	for userID, st := range tx.streakWrites {
		s.clock++
		doc := s.users[userID]
		doc.user.StreakState = st
		doc.version = s.clock
	}
	return nil
}

// versionLocked returns the current version of key, 0 if absent.
func (s *MemoryStore) versionLocked(key docKey) uint64 {
	switch key.kind {
	case kindEntry:
		id, err := primitive.ObjectIDFromHex(key.id)
		if err != nil {
			return 0
		}
		if d, ok := s.entries[id]; ok {
			return d.version
		}
	case kindUser:
		if d, ok := s.users[key.id]; ok {
			return d.version
		}
	}
	return 0
}

func (s *MemoryStore) FindEntry(_ context.Context, id primitive.ObjectID) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[id]
	if !ok {
		return nil, ErrNoDocument
	}
	e := cloneEntry(d.entry)
	return &e, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, q EntryQuery) ([]models.Entry, error) {
	s.mu.Lock()
	out := make([]models.Entry, 0)
	for _, d := range s.entries {
		if q.matches(&d.entry) {
			out = append(out, cloneEntry(d.entry))
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			if q.Ascending {
				return a.Date.Before(b.Date)
			}
			return a.Date.After(b.Date)
		}
		if q.Ascending {
			return a.ID.Hex() < b.ID.Hex()
		}
		return a.ID.Hex() > b.ID.Hex()
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) FindUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok {
		return nil, ErrNoDocument
	}
	u := cloneUser(d.user)
	return &u, nil
}

func (s *MemoryStore) CreateUserIfMissing(_ context.Context, u *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return false, nil
	}
	s.clock++
	s.users[u.ID] = &userDoc{user: cloneUser(*u), version: s.clock}
	return true, nil
}

func (s *MemoryStore) UpdatePreferences(_ context.Context, userID string, p models.Preferences) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.Theme = p.Theme
		u.DarkMode = p.DarkMode
	})
}

func (s *MemoryStore) SetPinHash(_ context.Context, userID, hash string) error {
	return s.mutateUser(userID, func(u *models.User) { u.PinHash = hash })
}

func (s *MemoryStore) mutateUser(userID string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok {
		return ErrNoDocument
	}
	fn(&d.user)
	s.clock++
	d.version = s.clock
	return nil
}

func (s *MemoryStore) ListQuotes(_ context.Context) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Quote(nil), s.quotes...), nil
}

func (s *MemoryStore) EnsureIndexes(context.Context) error { return nil }

type pendingEntry struct {
	entry  models.Entry
	insert bool
}

type memoryTx struct {
	s            *MemoryStore
	reads        map[docKey]uint64
	entryWrites  map[primitive.ObjectID]*pendingEntry
	streakWrites map[string]models.StreakState
}

func (tx *memoryTx) NewEntryID() primitive.ObjectID { return primitive.NewObjectID() }

func (tx *memoryTx) GetEntry(ctx context.Context, id primitive.ObjectID) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w, ok := tx.entryWrites[id]; ok {
		e := cloneEntry(w.entry)
		return &e, nil
	}

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	d, ok := tx.s.entries[id]
	var version uint64
	if ok {
		version = d.version
	}
	tx.recordRead(docKey{kindEntry, id.Hex()}, version)
	if !ok {
		return nil, ErrNoDocument
	}
	e := cloneEntry(d.entry)
	return &e, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.entryWrites[e.ID] = &pendingEntry{entry: cloneEntry(*e), insert: true}
	return nil
}

func (tx *memoryTx) ReplaceEntry(ctx context.Context, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	insert := false
	if prev, ok := tx.entryWrites[e.ID]; ok {
		insert = prev.insert
	}
	tx.entryWrites[e.ID] = &pendingEntry{entry: cloneEntry(*e), insert: insert}
	return nil
}

func (tx *memoryTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	d, ok := tx.s.users[userID]
	var version uint64
	if ok {
		version = d.version
	}
	tx.recordRead(docKey{kindUser, userID}, version)
	if !ok {
		return nil, ErrNoDocument
	}
	u := cloneUser(d.user)
	if st, ok := tx.streakWrites[userID]; ok {
		u.StreakState = st
	}
	return &u, nil
}

func (tx *memoryTx) UpdateStreak(ctx context.Context, userID string, st models.StreakState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.streakWrites[userID] = st
	return nil
}

// recordRead keeps the first version seen for key. Versions start at 1, so 0
// records that the document was absent.
func (tx *memoryTx) recordRead(key docKey, version uint64) {
	if _, seen := tx.reads[key]; !seen {
		tx.reads[key] = version
	}
}

func cloneEntry(e models.Entry) models.Entry {
	if e.Images != nil {
		e.Images = append(make([]string, 0, len(e.Images)), e.Images...)
	}
	if e.DrawingURL != nil {
		url := *e.DrawingURL
		e.DrawingURL = &url
	}
	if e.Content != nil {
		e.Content = cloneValue(e.Content).(map[string]any)
	}
	return e
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func cloneUser(u models.User) models.User {
	if u.LastEntryDate != nil {
		d := *u.LastEntryDate
		u.LastEntryDate = &d
	}
	return u
}

package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/metrics"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

const (
	EntriesCollection = "entries"
	UsersCollection   = "users"
	QuotesCollection  = "quotes"

	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"

	maxCommitRetries = 3
)

// MongoStore keeps entries, users and quotes in MongoDB. Transactions need a
// replica set or sharded cluster.
type MongoStore struct {
	client      *mongo.Client
	entries     *mongo.Collection
	users       *mongo.Collection
	quotes      *mongo.Collection
	maxAttempts int
}

func NewMongoStore(client *mongo.Client, db *mongo.Database, maxAttempts int) *MongoStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxTxAttempts
	}
	return &MongoStore{
		client:      client,
		entries:     db.Collection(EntriesCollection),
		users:       db.Collection(UsersCollection),
		quotes:      db.Collection(QuotesCollection),
		maxAttempts: maxAttempts,
	}
}

// RunTransaction runs fn in a snapshot transaction with majority writes. A
// TransientTransactionError (write conflict, primary step-down) re-runs fn from
// scratch; commits with an unknown result are retried as they are.
func (s *MongoStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txOpts); err != nil {
				return err
			}
			if err := fn(sc, &mongoTx{s: s}); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return err
			}
			return commitWithRetry(sc, sess)
		})
		if err == nil {
			return nil
		}
		if !hasErrorLabel(err, labelTransientTransaction) {
			return err
		}
		metrics.StoreTxRetries.WithLabelValues("mongo").Inc()
	}
	return fmt.Errorf("mongo store: gave up after %d attempts: %w (last: %v)", s.maxAttempts, apperr.ErrTransactionConflict, err)
}

func commitWithRetry(sc mongo.SessionContext, sess mongo.Session) error {
	var err error
	for i := 0; i < maxCommitRetries; i++ {
		err = sess.CommitTransaction(sc)
		if err == nil || !hasErrorLabel(err, labelUnknownCommitResult) {
			return err
		}
	}
	return err
}

func hasErrorLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

func (s *MongoStore) FindEntry(ctx context.Context, id primitive.ObjectID) (*models.Entry, error) {
	var e models.Entry
	err := s.entries.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MongoStore) ListEntries(ctx context.Context, q EntryQuery) ([]models.Entry, error) {
	filter := bson.M{"user_id": q.UserID}
	dateRange := bson.M{}
	if !q.From.IsZero() {
		dateRange["$gte"] = q.From
	}
	if !q.To.IsZero() {
		dateRange["$lte"] = q.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	dir := -1
	if q.Ascending {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.entries.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Entry, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) FindUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) CreateUserIfMissing(ctx context.Context, u *models.User) (bool, error) {
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) UpdatePreferences(ctx context.Context, userID string, p models.Preferences) error {
	return s.setUserFields(ctx, userID, bson.M{"theme": p.Theme, "dark_mode": p.DarkMode})
}

func (s *MongoStore) SetPinHash(ctx context.Context, userID, hash string) error {
	return s.setUserFields(ctx, userID, bson.M{"pin_hash": hash})
}

func (s *MongoStore) setUserFields(ctx context.Context, userID string, fields bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (s *MongoStore) ListQuotes(ctx context.Context) ([]models.Quote, error) {
	cur, err := s.quotes.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var quotes []models.Quote
	if err := cur.All(ctx, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// EnsureIndexes creates the indexes the entry queries rely on.
// Called on startup after Mongo has connected.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	// (user_id, date) serves both the month range query and recent entries.
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "date", Value: -1},
		},
		Options: options.Index().SetName("idx_user_date"),
	}
	_, err := s.entries.Indexes().CreateOne(ctx, model)
	return err
}

type mongoTx struct {
	s *MongoStore
}

func (tx *mongoTx) NewEntryID() primitive.ObjectID { return primitive.NewObjectID() }

func (tx *mongoTx) GetEntry(ctx context.Context, id primitive.ObjectID) (*models.Entry, error) {
	return tx.s.FindEntry(ctx, id)
}

func (tx *mongoTx) InsertEntry(ctx context.Context, e *models.Entry) error {
	_, err := tx.s.entries.InsertOne(ctx, e)
	return err
}

func (tx *mongoTx) ReplaceEntry(ctx context.Context, e *models.Entry) error {
	res, err := tx.s.entries.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (tx *mongoTx) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return tx.s.FindUser(ctx, userID)
}

func (tx *mongoTx) UpdateStreak(ctx context.Context, userID string, st models.StreakState) error {
	return tx.s.setUserFields(ctx, userID, bson.M{
		"streak":          st.Streak,
		"longest_streak":  st.LongestStreak,
		"last_entry_date": st.LastEntryDate,
	})
}

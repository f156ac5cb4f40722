package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for the set of a user's sessions
	UserSessionKeyPrefix = "user_sessions:"
)

// SessionStore keeps opaque session tokens in Redis. A user may hold one
// session per device; all of them are listed under the user's key so they can
// be dropped together.
type SessionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionDuration
	}
	return &SessionStore{Client: client, TTL: ttl}
}

// Create starts a new session for userID and returns its token.
func (s *SessionStore) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	sessionKey := SessionKeyPrefix + token
	userKey := UserSessionKeyPrefix + userID.String()

	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, sessionKey, userID.String(), s.TTL)
	pipe.SAdd(ctx, userKey, token)
	pipe.Expire(ctx, userKey, s.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the user a token belongs to. An unknown or expired token
// reports false with a nil error.
func (s *SessionStore) Validate(ctx context.Context, token string) (uuid.UUID, bool, error) {
	if token == "" {
		return uuid.Nil, false, nil
	}

	userIDStr, err := s.Client.Get(ctx, SessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false, err
	}
	return userID, true, nil
}

// Refresh extends the session by another TTL from now.
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is empty")
	}

	userIDStr, err := s.Client.Get(ctx, SessionKeyPrefix+token).Result()
	if err != nil {
		return err
	}

	pipe := s.Client.TxPipeline()
	pipe.Expire(ctx, SessionKeyPrefix+token, s.TTL)
	pipe.Expire(ctx, UserSessionKeyPrefix+userIDStr, s.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes a single session.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sessionKey := SessionKeyPrefix + token
	userIDStr, err := s.Client.Get(ctx, sessionKey).Result()
	if err == nil && userIDStr != "" {
		s.Client.SRem(ctx, UserSessionKeyPrefix+userIDStr, token)
	}
	return s.Client.Del(ctx, sessionKey).Err()
}

// InvalidateUser removes every session of userID (password change).
func (s *SessionStore) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	userKey := UserSessionKeyPrefix + userID.String()

	tokens, err := s.Client.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, SessionKeyPrefix+t)
	}
	keys = append(keys, userKey)
	return s.Client.Del(ctx, keys...).Err()
}

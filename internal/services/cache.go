package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL is used when a cache is built without a TTL
	DefaultCacheTTL = 8 * time.Hour
	// MonthCacheTTL bounds how long a calendar month stays cached
	MonthCacheTTL = 6 * time.Hour
)

// RedisCache stores JSON values under CacheKeyPrefix.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{Client: client, TTL: ttl}
}

// Get decodes the value at key into dest. A miss is reported as false with a
// nil error.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.Client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.TTL)
}

func (c *RedisCache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, CacheKeyPrefix+key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, CacheKeyPrefix+key).Err()
}

// Incr bumps the counter at key and returns its new value.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, CacheKeyPrefix+key).Result()
}

// GetInt returns the counter at key, 0 when unset.
func (c *RedisCache) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.Get(ctx, CacheKeyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

// MonthCache caches calendar month summaries per user. Get and Set are best
// effort; a failing cache only costs a store query.
//
// On a miss Get returns the slot a freshly queried month must be stored under.
// The slot pins the cache state the caller missed on, so a Set that races
// with Invalidate writes somewhere no later Get will read.
type MonthCache interface {
	Get(ctx context.Context, userID, month string) (v []models.EntrySummary, slot string, ok bool)
	Set(ctx context.Context, slot string, v []models.EntrySummary)
	Invalidate(ctx context.Context, userID string) error
}

// RedisMonthCache keys every month under a per-user generation number.
// Invalidate bumps the generation, which orphans all older keys at once; they
// expire with their TTL.
type RedisMonthCache struct {
	cache *RedisCache
}

func NewRedisMonthCache(client *redis.Client) *RedisMonthCache {
	return &RedisMonthCache{cache: NewRedisCache(client, MonthCacheTTL)}
}

func (m *RedisMonthCache) key(ctx context.Context, userID, month string) (string, error) {
	gen, err := m.cache.GetInt(ctx, CacheKey("entries-gen", userID))
	if err != nil {
		return "", err
	}
	return monthKey(userID, gen, month), nil
}

func monthKey(userID string, gen int64, month string) string {
	return CacheKey("entries-month", userID+":"+strconv.FormatInt(gen, 10)+":"+month)
}

// Get reads the generation once; the returned slot carries it to Set.
func (m *RedisMonthCache) Get(ctx context.Context, userID, month string) ([]models.EntrySummary, string, bool) {
	key, err := m.key(ctx, userID, month)
	if err != nil {
		return nil, "", false
	}
	var out []models.EntrySummary
	ok, err := m.cache.Get(ctx, key, &out)
	if err != nil || !ok {
		return nil, key, false
	}
	if out == nil {
		out = []models.EntrySummary{}
	}
	return out, key, true
}

func (m *RedisMonthCache) Set(ctx context.Context, slot string, v []models.EntrySummary) {
	if slot == "" {
		return
	}
	_ = m.cache.Set(ctx, slot, v)
}

func (m *RedisMonthCache) Invalidate(ctx context.Context, userID string) error {
	_, err := m.cache.Incr(ctx, CacheKey("entries-gen", userID))
	return err
}

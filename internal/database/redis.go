package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/logger"
)

// RedisClient backs sessions, caches, the write limiter and live events.
var RedisClient *redis.Client

// ConnectRedis connects to the Redis at redisURI. Pool settings given as URI
// query parameters (pool_size, dial_timeout, ...) win over the defaults below.
func ConnectRedis(redisURI string) error {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return fmt.Errorf("parse redis uri: %w", err)
	}
	applyRedisDefaults(opt)

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}

	RedisClient = client
	logger.Logger.Info("connected to Redis", zap.String("addr", opt.Addr), zap.Int("db", opt.DB), zap.Int("pool_size", opt.PoolSize))
	return nil
}

// applyRedisDefaults fills the options ParseURL left unset. The live event
// subscriber holds one pooled connection for as long as the server runs.
func applyRedisDefaults(opt *redis.Options) {
	if opt.PoolSize == 0 {
		opt.PoolSize = 10
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = 2
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 3
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 3 * time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 3 * time.Second
	}
	if opt.ConnMaxIdleTime == 0 {
		opt.ConnMaxIdleTime = 5 * time.Minute
	}
}

// DisconnectRedis closes the Redis connection
func DisconnectRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

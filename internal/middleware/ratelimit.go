package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// WriteRateLimitWindow is the fixed window entry saves are counted in
	WriteRateLimitWindow = time.Minute
	// WriteRateLimitKeyPrefix is the Redis key prefix for per-user save counters
	WriteRateLimitKeyPrefix = "ratelimit:writes:"
)

// WriteRateLimit allows each authenticated user at most limit requests per
// WriteRateLimitWindow, counted in Redis so the limit holds across instances.
// It must run after RequireAuth. A zero limit or nil client disables it, and
// a Redis failure lets the request through.
func WriteRateLimit(client *redis.Client, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if client == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := WriteRateLimitKeyPrefix + userID

			pipe := client.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, WriteRateLimitWindow)
			if _, err := pipe.Exec(ctx); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			count := int(incr.Val())
			remaining := limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if count > limit {
				ttl, err := client.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = WriteRateLimitWindow
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(fmt.Sprintf(`{"success":false,"message":"Too many saves. Please wait a moment.","retry_after":%d}`, int(ttl.Seconds())+1)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

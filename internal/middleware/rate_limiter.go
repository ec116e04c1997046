package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fluxqueue/jobqueue/internal/config"
)

// limiter is the minimal fixed-window counter contract RateLimiter
// needs, satisfied by either a Redis-backed or an in-memory
// implementation.
type limiter interface {
	// incr increments key's counter, setting window as its expiry the
	// first time it is created, and returns the count after incrementing.
	incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// redisLimiter backs the rate limiter with Redis INCR+EXPIRE, shared
// across every process behind a load balancer.
type redisLimiter struct {
	rdb *redis.Client
}

func (l *redisLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		l.rdb.Expire(ctx, key, window)
	}
	return count, nil
}

// memoryLimiter is the fallback used when REDIS_ADDR is unset: a
// process-local fixed-window counter. It does not coordinate across
// processes, which is acceptable for the single-process deployment
// this service targets (spec.md's non-goals already exclude
// distributed coordination).
type memoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	count     int64
	expiresAt time.Time
}

func newMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{buckets: make(map[string]*memoryBucket)}
}

func (l *memoryLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.expiresAt) {
		bucket = &memoryBucket{count: 0, expiresAt: now.Add(window)}
		l.buckets[key] = bucket
	}
	bucket.count++
	return bucket.count, nil
}

// RateLimiter applies a fixed-window request cap per client IP,
// protecting POST /jobs/email (SPEC_FULL.md §4.12). Backed by Redis
// when REDIS_ADDR is configured, otherwise an in-memory fallback.
func RateLimiter(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	var lim limiter
	if rdb != nil {
		lim = &redisLimiter{rdb: rdb}
	} else {
		lim = newMemoryLimiter()
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())

		count, err := lim.incr(ctx, key, cfg.RateLimitWindow)
		if err != nil {
			// A rate limiter outage must not block job submission.
			c.Next()
			return
		}

		remaining := int64(cfg.RateLimitRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Writer.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RateLimitRequests))
		c.Writer.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(cfg.RateLimitWindow).Unix()))

		if count > int64(cfg.RateLimitRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether a client may make another request in the
// current window. Implementations fail open: when the backing store errors,
// the request goes through.
type RateLimiter interface {
	Allow(ctx context.Context, clientIP string) bool
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func (l *redisRateLimiter) Allow(ctx context.Context, clientIP string) bool {
	key := "jsearch:ratelimit:" + clientIP

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= int64(l.limit)
}

type memoryRateLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	limit  int
	window time.Duration
}

type windowCount struct {
	count int
	reset time.Time
}

func newMemoryRateLimiter(limit int, window time.Duration) *memoryRateLimiter {
	return &memoryRateLimiter{
		counts: make(map[string]*windowCount),
		limit:  limit,
		window: window,
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, clientIP string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.counts[clientIP]
	if !ok || now.After(wc.reset) {
		if len(l.counts) > 10000 {
			for ip, c := range l.counts {
				if now.After(c.reset) {
					delete(l.counts, ip)
				}
			}
		}
		l.counts[clientIP] = &windowCount{count: 1, reset: now.Add(l.window)}
		return true
	}

	wc.count++
	return wc.count <= l.limit
}

// NewRateLimiter builds a Redis-backed limiter, or the in-memory fallback
// when no Redis client is available.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	if client == nil {
		return newMemoryRateLimiter(limit, window)
	}
	return &redisRateLimiter{client: client, limit: limit, window: window}
}

// RateLimit throttles a route per client IP.
func RateLimit(limiter RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}
			if !limiter.Allow(c.Request().Context(), c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"message": "Too many requests, slow down",
				})
			}
			return next(c)
		}
	}
}

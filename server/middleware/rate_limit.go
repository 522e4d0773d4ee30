package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/timetable/server/internal/errors"
	"github.com/hrygo/timetable/store/cache"
)

const (
	// clientIdleTTL is how long a client's bucket is kept after its last request.
	clientIdleTTL = 10 * time.Minute
	// maxTrackedClients caps the buckets held at once; the least recently
	// seen client is dropped first.
	maxTrackedClients = 10000
)

// RateLimiter hands out one token bucket per client key. Buckets of idle
// clients expire so the set of tracked keys stays bounded.
type RateLimiter struct {
	mu      sync.Mutex
	clients *cache.Cache // key -> *rate.Limiter
	rate    rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing perSecond requests per key with
// the given burst. Non-positive values fall back to 10/s with burst 20.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return newRateLimiter(perSecond, burst, cache.Config{
		DefaultTTL:      clientIdleTTL,
		CleanupInterval: time.Minute,
		MaxItems:        maxTrackedClients,
	})
}

func newRateLimiter(perSecond float64, burst int, cfg cache.Config) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		clients: cache.New(cfg),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

// getLimiter gets or creates a limiter for the given key and extends its idle TTL.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
	}
	rl.clients.Set(key, limiter, 0)
	return limiter.(*rate.Limiter)
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Clients returns the number of client buckets currently tracked.
func (rl *RateLimiter) Clients() int {
	return rl.clients.Size()
}

// Close stops the background expiry of idle buckets.
func (rl *RateLimiter) Close() {
	rl.clients.Close()
}

// RateLimit rejects requests over the per-client budget. Clients are keyed by
// their real IP.
func RateLimit(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				apiErr := errors.RateLimitExceeded("rate limit exceeded")
				return c.JSON(apiErr.HTTPStatus(), apiErr)
			}
			return next(c)
		}
	}
}

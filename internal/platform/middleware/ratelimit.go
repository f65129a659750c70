package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/platform/metrics"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

// RateLimiter keeps one token bucket per client. Uploads and PDF renders
// take more tokens than plain reads.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*ratelimit.Bucket)}
}

func (rl *RateLimiter) bucket(key string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[key]; !ok {
		b = ratelimit.NewBucketWithRate(rl.cfg.RequestsPerSecond, int64(rl.cfg.BurstSize))
		rl.clients[key] = b
		metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
	}
	return b
}

// Prune drops buckets that have refilled completely and returns how many
// were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, b := range rl.clients {
		if b.Available() == b.Capacity() {
			delete(rl.clients, key)
			n++
		}
	}
	metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
	return n
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

func tokenCost(c echo.Context) int64 {
	path := c.Request().URL.Path
	switch {
	case path == "/health" || path == "/metrics":
		return 0
	case strings.HasSuffix(path, "/presign"):
		return 5
	case strings.HasSuffix(path, "/pdf"):
		return 3
	}
	return 1
}

// Middleware rejects requests with 429 once a client's bucket is empty.
// Clients are keyed by tenant and remote IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := strconv.FormatFloat(rl.cfg.RequestsPerSecond, 'f', 0, 64)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cost := tokenCost(c)
			if cost == 0 {
				return next(c)
			}

			key := c.RealIP()
			if tenantID, ok := c.Get("jwt_tenant_id").(string); ok && tenantID != "" {
				key = tenantID + ":" + key
			}

			b := rl.bucket(key)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if b.Available() < cost || b.TakeAvailable(cost) < cost {
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
			return next(c)
		}
	}
}

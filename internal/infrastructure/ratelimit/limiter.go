// Package ratelimit throttles request volume per tenant using a fixed
// window counter in Redis.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/metrics"
)

// Config holds rate limiter policy.
type Config struct {
	Window  time.Duration
	Max     int
	Enabled bool
}

// DefaultConfig returns the default policy: 100 requests per 15 minutes.
func DefaultConfig() Config {
	return Config{
		Window:  15 * time.Minute,
		Max:     100,
		Enabled: true,
	}
}

// Result describes the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Window    time.Duration
	ResetAt   time.Time
}

// Limiter is a fixed-window request counter keyed by tenant identity.
// Every admission increments the key's counter exactly once, allowed or
// not; failed and successful requests both count.
type Limiter struct {
	rdb    *redis.Client
	config Config
	logger zerolog.Logger
}

// NewLimiter creates a rate limiter backed by the given Redis client.
func NewLimiter(rdb *redis.Client, config Config, logger zerolog.Logger) *Limiter {
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.Max <= 0 {
		config.Max = DefaultConfig().Max
	}
	return &Limiter{
		rdb:    rdb,
		config: config,
		logger: logger,
	}
}

// Admit counts one request for the key and reports whether it is within
// the window's limit. A denial returns the result alongside
// domain.ErrRateLimited; any other error means the counter itself is
// unavailable. The increment is atomic per key; two simultaneous requests
// cannot observe the same pre-increment count.
func (l *Limiter) Admit(ctx context.Context, key string) (*Result, error) {
	redisKey := "ratelimit:" + key

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First request in the window owns setting the expiry.
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return nil, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	ttl, err := l.rdb.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.config.Window
	}

	remaining := l.config.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   int(count) <= l.config.Max,
		Limit:     l.config.Max,
		Remaining: remaining,
		Window:    l.config.Window,
		ResetAt:   time.Now().Add(ttl),
	}
	if !result.Allowed {
		return result, fmt.Errorf("key %s: %w", key, domain.ErrRateLimited)
	}
	return result, nil
}

// Middleware enforces the limit on every request. Denials carry the window
// size and limit so clients can back off correctly.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			result, err := l.Admit(r.Context(), keyFunc(r))
			if err != nil && !errors.Is(err, domain.ErrRateLimited) {
				// Counter unavailable: admit rather than drop traffic.
				l.logger.Error().Err(err).Msg("Rate limit check failed, admitting request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

			if !result.Allowed {
				l.logger.Warn().Str("key", keyFunc(r)).Msg("Rate limit exceeded")
				metrics.RateLimitDenied.Inc()
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(result.Window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": "Too many requests, please try again later.",
					"rateLimitInfo": map[string]any{
						"windowMs":    result.Window.Milliseconds(),
						"maxRequests": result.Limit,
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TenantKey derives the bucket key for a request: the shop domain header
// when present, otherwise the client IP. The ephemeral source port is
// stripped so every connection from one client shares a bucket; RealIP
// already leaves a bare address when a forwarding header was present.
func TenantKey(r *http.Request) string {
	if shop := r.Header.Get("X-Shopify-Shop-Domain"); shop != "" {
		return "shop:" + shop
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-gateway/internal/domain"
)

func newTestLimiter(t *testing.T, config Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLimiter(rdb, config, zerolog.Nop()), mr
}

func TestAdmitWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Window: 15 * time.Minute, Max: 100, Enabled: true})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		result, err := limiter.Admit(ctx, "shop:demo.myshopify.com")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d denied", i+1)
	}

	result, err := limiter.Admit(ctx, "shop:demo.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, result.Allowed, "101st request admitted")
	assert.Equal(t, 0, result.Remaining)
}

func TestAdmitResetsAfterWindow(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{Window: time.Minute, Max: 2, Enabled: true})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Admit(ctx, "shop:demo.myshopify.com")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Admit(ctx, "shop:demo.myshopify.com")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.False(t, result.Allowed)

	mr.FastForward(time.Minute + time.Second)

	result, err = limiter.Admit(ctx, "shop:demo.myshopify.com")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "request after window elapsed denied")
}

func TestAdmitKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Window: time.Minute, Max: 1, Enabled: true})
	ctx := context.Background()

	result, err := limiter.Admit(ctx, "shop:a.myshopify.com")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Admit(ctx, "shop:a.myshopify.com")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.False(t, result.Allowed)

	result, err = limiter.Admit(ctx, "shop:b.myshopify.com")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "unrelated tenant throttled")
}

func TestMiddlewareDenyResponse(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Window: 15 * time.Minute, Max: 1, Enabled: true})

	handler := limiter.Middleware(TenantKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Error         string `json:"error"`
		RateLimitInfo struct {
			WindowMs    int64 `json:"windowMs"`
			MaxRequests int   `json:"maxRequests"`
		} `json:"rateLimitInfo"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(15*60*1000), body.RateLimitInfo.WindowMs)
	assert.Equal(t, 1, body.RateLimitInfo.MaxRequests)
}

func TestMiddlewareDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Window: time.Minute, Max: 1, Enabled: false})

	handler := limiter.Middleware(TenantKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestTenantKeyDerivation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	assert.Equal(t, "shop:demo.myshopify.com", TenantKey(req))

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "203.0.113.9:1234"
	assert.Equal(t, "ip:203.0.113.9", TenantKey(anon))

	// RealIP leaves a bare address when a forwarding header was present.
	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "ip:203.0.113.9", TenantKey(bare))
}

// One client on many connections shares a single bucket: the ephemeral
// source port must not partition the key.
func TestMiddlewareThrottlesAcrossConnections(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Window: 15 * time.Minute, Max: 1, Enabled: true})

	handler := limiter.Middleware(TenantKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("203.0.113.9:%d", 10001+i)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d from port %d", i+1, 10001+i)
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:10001"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yourusername/pulse-api/internal/config"
)

// memoryCounterStore - счетчики в памяти вместо Redis
type memoryCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	ttls    map[string]time.Duration
	failErr error
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memoryCounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls[key] = ttl
	return nil
}

func (s *memoryCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.ttls[key]
	if !ok {
		return -1, nil
	}
	return ttl, nil
}

func newLimitedRouter(store CounterStore, cfg RateLimitConfig) *gin.Engine {
	rl := NewRateLimiter(store)
	r := gin.New()
	r.POST("/api/auth/login", rl.Limit(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/auth/signup", rl.Limit(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	store := newMemoryCounterStore()
	r := newLimitedRouter(store, RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"})

	first := post(r, "/api/auth/login")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, post(r, "/api/auth/login").Code)

	blocked := post(r, "/api/auth/login")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "rate_limited")

	// Другой маршрут считается отдельно
	assert.Equal(t, http.StatusOK, post(r, "/api/auth/signup").Code)
	assert.Equal(t, time.Minute, store.ttls["rl:test:10.0.0.1:/api/auth/login"], "TTL устанавливается на первом запросе окна")
}

func TestRateLimiter_FailOpen(t *testing.T) {
	store := newMemoryCounterStore()
	store.failErr = errors.New("connection refused")
	r := newLimitedRouter(store, RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:test"})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(r, "/api/auth/login").Code, "Ошибка хранилища не должна блокировать запросы")
	}
}

func TestRateLimiter_LimitByIP(t *testing.T) {
	rl := NewRateLimiter(newMemoryCounterStore())
	cfg := RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:ip"}
	r := gin.New()
	group := r.Group("/api", rl.LimitByIP(cfg))
	group.POST("/a", func(c *gin.Context) { c.Status(http.StatusOK) })
	group.POST("/b", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, post(r, "/api/a").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r, "/api/b").Code, "Лимит по IP общий для всей группы")
}

func TestAuthRateLimitConfig_Defaults(t *testing.T) {
	cfg := AuthRateLimitConfig(config.RateLimitConfig{})

	assert.Equal(t, 20, cfg.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, "rl:auth", cfg.KeyPrefix)

	custom := AuthRateLimitConfig(config.RateLimitConfig{MaxRequests: 5, Window: 10 * time.Second})
	assert.Equal(t, 5, custom.MaxRequests)
	assert.Equal(t, 10*time.Second, custom.Window)
}

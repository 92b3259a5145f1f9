package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/yourusername/pulse-api/internal/config"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
}

// AuthRateLimitConfig строит лимит для signup/login из конфигурации приложения
func AuthRateLimitConfig(cfg config.RateLimitConfig) RateLimitConfig {
	out := RateLimitConfig{
		MaxRequests: cfg.MaxRequests,
		Window:      cfg.Window,
		KeyPrefix:   "rl:auth",
	}
	if out.MaxRequests <= 0 {
		out.MaxRequests = 20
	}
	if out.Window <= 0 {
		out.Window = time.Minute
	}
	return out
}

// CounterStore - счетчики фиксированного окна
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type redisCounterStore struct {
	client redis.UniversalClient
}

// NewRedisCounterStore оборачивает клиент Redis в CounterStore
func NewRedisCounterStore(client redis.UniversalClient) CounterStore {
	return redisCounterStore{client: client}
}

func (s redisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s redisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s redisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// RateLimiter создаёт middleware для rate limiting с фиксированным окном
type RateLimiter struct {
	store CounterStore
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(store CounterStore) *RateLimiter {
	return &RateLimiter{store: store}
}

// Limit возвращает Gin middleware с заданной конфигурацией.
// Ключ формируется из IP + шаблона маршрута.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rl.limit(c, cfg, fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path))
	}
}

// LimitByIP ограничивает количество запросов по IP без привязки к маршруту
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.limit(c, cfg, fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP()))
	}
}

func (rl *RateLimiter) limit(c *gin.Context, cfg RateLimitConfig, key string) {
	log := logger.FromContext(c.Request.Context(), "RateLimiter")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	count, err := rl.store.Incr(ctx, key)
	if err != nil {
		// При ошибке хранилища пропускаем запрос (fail-open)
		log.WithError(err).WithField("key", key).Warn("[RateLimiter] Counter store error, allowing request")
		c.Next()
		return
	}

	// Первый запрос в окне устанавливает TTL
	if count == 1 {
		if err := rl.store.Expire(ctx, key, cfg.Window); err != nil {
			log.WithError(err).WithField("key", key).Warn("[RateLimiter] Failed to set TTL")
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, err := rl.store.TTL(ctx, key)
	retryAfter := int(ttl.Seconds())
	if err != nil || retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

	if int(count) > cfg.MaxRequests {
		log.WithField("client_ip", c.ClientIP()).WithField("count", count).
			Warnf("[RateLimiter] Rate limit exceeded (limit=%d)", cfg.MaxRequests)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}

	c.Next()
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
	// Scope заменяет шаблон маршрута в ключе, если лимит общий для нескольких точек входа
	Scope string
}

// GdprCheckRateLimitConfig - лимит на проверку текста через LLM.
// Общий Scope дает один счетчик для HTTP-проверки и проверки из сессии заполнения.
func GdprCheckRateLimitConfig(maxRequests int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      window,
		KeyPrefix:   "rl:gdpr",
		Scope:       "check-gdpr",
	}
}

// RateLimitDecision - результат учета одного запроса
type RateLimitDecision struct {
	Allowed    bool
	Count      int64
	Remaining  int
	RetryAfter int
}

// RateLimiter создаёт middleware для rate limiting на основе Redis
type RateLimiter struct {
	redisClient redis.UniversalClient
	logger      *zap.Logger
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redisClient: redisClient, logger: logger}
}

func rateLimitKey(cfg RateLimitConfig, subject, path string) string {
	scope := cfg.Scope
	if scope == "" {
		scope = path
	}
	return fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, subject, scope)
}

// Allow учитывает запрос по ключу в окне cfg.Window.
// Ошибка Redis возвращается вызывающему: решение fail-open принимает он.
func (rl *RateLimiter) Allow(ctx context.Context, key string, cfg RateLimitConfig) (RateLimitDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return RateLimitDecision{Allowed: true}, err
	}

	// Первый запрос в окне задает TTL
	if count == 1 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			rl.logger.Warn("Failed to set rate limit TTL", zap.String("key", key), zap.Error(err))
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redisClient.TTL(ctx, key).Result()
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	return RateLimitDecision{
		Allowed:    int(count) <= cfg.MaxRequests,
		Count:      count,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// Limit возвращает Gin middleware с заданной конфигурацией.
// Ключ формируется из пользователя (или IP для анонимных запросов) и Scope либо шаблона маршрута.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if userID, ok := UserIDFromContext(c); ok {
			subject = "user:" + userID.String()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		key := rateLimitKey(cfg, subject, path)

		decision, err := rl.Allow(c.Request.Context(), key, cfg)
		if err != nil {
			// fail-open: недоступность Redis не блокирует запросы
			rl.logger.Warn("Rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", decision.RetryAfter))

		if !decision.Allowed {
			rl.logger.Info("Rate limit exceeded",
				zap.String("subject", subject),
				zap.String("path", path),
				zap.Int64("count", decision.Count),
				zap.Int("limit", cfg.MaxRequests),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", decision.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": decision.RetryAfter,
			})
			return
		}

		c.Next()
	}
}

// UserLimit применяет лимит к пользователю вне HTTP-маршрута, например в WebSocket-сессии
type UserLimit struct {
	limiter *RateLimiter
	cfg     RateLimitConfig
}

// ForUser возвращает лимит cfg с ключом по пользователю
func (rl *RateLimiter) ForUser(cfg RateLimitConfig) *UserLimit {
	return &UserLimit{limiter: rl, cfg: cfg}
}

// Allow сообщает, укладывается ли очередной запрос пользователя в лимит. Недоступный Redis запрос не блокирует.
func (l *UserLimit) Allow(ctx context.Context, userID uuid.UUID) bool {
	key := rateLimitKey(l.cfg, "user:"+userID.String(), "")
	decision, err := l.limiter.Allow(ctx, key, l.cfg)
	if err != nil {
		l.limiter.logger.Warn("Rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
		return true
	}
	if !decision.Allowed {
		l.limiter.logger.Info("Rate limit exceeded",
			zap.String("subject", "user:"+userID.String()),
			zap.String("scope", l.cfg.Scope),
			zap.Int64("count", decision.Count),
			zap.Int("limit", l.cfg.MaxRequests),
		)
	}
	return decision.Allowed
}

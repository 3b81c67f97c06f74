package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/pilotvoice-api/internal/config"
)

// Redis хранит только кеши и счетчики rate limit, которые работают в режиме fail-open,
// поэтому операции ограничены короткими тайм-аутами
const (
	redisDialTimeout      = 2 * time.Second
	redisOperationTimeout = 500 * time.Millisecond
	redisPingTimeout      = 5 * time.Second

	defaultRedisMaxRetries      = 2
	defaultRedisMinRetryBackoff = 8 * time.Millisecond
	defaultRedisMaxRetryBackoff = 256 * time.Millisecond
)

// NewUniversalRedisClient создает клиент Redis (single, sentinel или cluster) и проверяет подключение
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	options, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", modeOrDefault(cfg.Mode), options.Addrs, err)
	}

	return client, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addresses := cfg.Addrs
	if len(addresses) == 0 {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis configuration error: Addrs or Addr must be provided")
		}
		addresses = []string{cfg.Addr}
	}

	options := &redis.UniversalOptions{
		Addrs:           addresses,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     redisDialTimeout,
		ReadTimeout:     redisOperationTimeout,
		WriteTimeout:    redisOperationTimeout,
		MaxRetries:      defaultRedisMaxRetries,
		MinRetryBackoff: defaultRedisMinRetryBackoff,
		MaxRetryBackoff: defaultRedisMaxRetryBackoff,
	}

	// -1 в MaxRetries отключает повторы, как и в go-redis
	if cfg.MaxRetries != 0 {
		options.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff > 0 {
		options.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff > 0 {
		options.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}
	if options.MinRetryBackoff > options.MaxRetryBackoff {
		return nil, fmt.Errorf("redis min_retry_backoff (%s) exceeds max_retry_backoff (%s)", options.MinRetryBackoff, options.MaxRetryBackoff)
	}

	switch mode := modeOrDefault(cfg.Mode); mode {
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires MasterName")
		}
		options.MasterName = cfg.MasterName
	case "cluster":
		if len(addresses) < 2 {
			return nil, fmt.Errorf("redis cluster mode requires at least two addresses")
		}
	case "single":
		options.Addrs = addresses[:1]
	default:
		return nil, fmt.Errorf("unsupported redis mode: %s", mode)
	}

	return options, nil
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return "single"
	}
	return mode
}

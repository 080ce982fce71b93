package httpx

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces limiter counters when no prefix is configured.
const DefaultRedisKeyPrefix = "kyc:ratelimit:"

// RedisLimiterConfig points the shared limiter at a Redis instance.
type RedisLimiterConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// OpTimeout bounds each round trip; Allow fails open once it elapses.
	OpTimeout time.Duration
}

type redisRateLimiter struct {
	client    *redis.Client
	log       *slog.Logger
	keyPrefix string
	opTimeout time.Duration
}

// NewRedisRateLimiter connects to Redis so every API instance counts against the same windows.
func NewRedisRateLimiter(cfg RedisLimiterConfig, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisRateLimiter(client, cfg, logger), nil
}

func newRedisRateLimiter(client *redis.Client, cfg RedisLimiterConfig, logger *slog.Logger) *redisRateLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &redisRateLimiter{client: client, log: logger, keyPrefix: cfg.KeyPrefix, opTimeout: cfg.OpTimeout}
}

// Allow counts the hit and arms the window expiry in one MULTI block.
// A Redis failure lets the request through.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.opTimeout)
	defer cancel()

	counterKey := rl.keyPrefix + key
	var (
		hits      *redis.IntCmd
		remaining *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, counterKey)
		pipe.ExpireNX(ctx, counterKey, window)
		remaining = pipe.PTTL(ctx, counterKey)
		return nil
	})
	if err != nil {
		if rl.log != nil {
			rl.log.Error("rate limit counter unavailable", "key", counterKey, "error", err)
		}
		return rateDecision{allowed: true}
	}

	ttl := remaining.Val()
	if ttl <= 0 {
		ttl = window
	}
	count := int(hits.Val())
	return rateDecision{allowed: count <= limit, count: count, windowEnd: time.Now().Add(ttl)}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

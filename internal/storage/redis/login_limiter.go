package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/tubeauth/internal/util"
)

const (
	attemptsKeyPrefix = "login:attempts:"
	blockedKeyPrefix  = "login:blocked:"
)

// LoginLimiter counts login attempts per key in a fixed window. Once Limit
// is exceeded within Interval the key stays blocked for BlockTime.
type LoginLimiter struct {
	client *redis.Client
	cfg    util.RateLimiterConfig
}

func NewLoginLimiter(client *redis.Client, cfg util.RateLimiterConfig) *LoginLimiter {
	return &LoginLimiter{client: client, cfg: cfg}
}

func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	blocked, err := l.client.Exists(ctx, blockedKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check login block: %w", err)
	}
	if blocked > 0 {
		return false, nil
	}

	attemptsKey := attemptsKeyPrefix + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, attemptsKey)
	pipe.ExpireNX(ctx, attemptsKey, l.cfg.Interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("count login attempt: %w", err)
	}

	if incr.Val() > int64(l.cfg.Limit) {
		if err := l.block(ctx, key, l.cfg.BlockTime); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Reset forgets the attempts of key, e.g. after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, attemptsKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (l *LoginLimiter) block(ctx context.Context, key string, d time.Duration) error {
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, blockedKeyPrefix+key, "blocked", d)
	pipe.Del(ctx, attemptsKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("block login: %w", err)
	}
	return nil
}

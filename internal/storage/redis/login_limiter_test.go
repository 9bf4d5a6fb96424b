package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/util"
)

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestLoginLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client, cleanup, err := util.NewRedisClient(zap.NewNop().Sugar(), util.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(cleanup)

	l := NewLoginLimiter(client, util.RateLimiterConfig{Limit: 2, Interval: time.Minute, BlockTime: time.Minute})
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(ctx, key)
		if err != nil || !allowed {
			t.Fatalf("attempt %d: allowed=%v err=%v", i, allowed, err)
		}
	}
	if allowed, _ := l.Allow(ctx, key); allowed {
		t.Fatalf("third attempt must be blocked")
	}
	if err := l.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if allowed, _ := l.Allow(ctx, key); allowed {
		t.Fatalf("block must outlive a reset of the attempt counter")
	}

	client.Del(ctx, blockedKeyPrefix+key)
}

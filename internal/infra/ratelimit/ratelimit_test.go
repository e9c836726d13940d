package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"sealtrail/internal/infra/idgen"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Allow(ctx, "client-a", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !decision.Allowed || decision.Remaining != 3-i {
			t.Fatalf("request %d: unexpected decision %+v", i, decision)
		}
	}
	decision, _ := limiter.Allow(ctx, "client-a", 3, time.Minute)
	if decision.Allowed || decision.Remaining != 0 || !decision.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected denial, got %+v", decision)
	}
	if other, _ := limiter.Allow(ctx, "client-b", 3, time.Minute); !other.Allowed {
		t.Fatal("keys must not share a window")
	}

	now = now.Add(time.Minute + time.Second)
	if decision, _ := limiter.Allow(ctx, "client-a", 3, time.Minute); !decision.Allowed || decision.Remaining != 2 {
		t.Fatalf("expected fresh window, got %+v", decision)
	}
}

func TestMemoryLimiter_Capacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }, MaxKeys: 2})
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "a", 1, time.Second)
	_, _ = limiter.Allow(ctx, "b", 1, time.Second)
	if _, err := limiter.Allow(ctx, "c", 1, time.Second); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := limiter.Allow(ctx, "c", 1, time.Second); err != nil {
		t.Fatalf("expired buckets should be collected: %v", err)
	}
}

func TestMemoryLimiter_NonPositiveLimitAllows(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "a", 0, time.Second)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected allow, got %+v %v", decision, err)
	}
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	limiter, err := NewRedisLimiter(addr, os.Getenv("REDIS_PASSWORD"), 0, nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer limiter.Close()
	ctx := context.Background()
	if err := limiter.Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	key := "test-" + idgen.Random()()
	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, key, 2, time.Minute)
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d: %+v %v", i, decision, err)
		}
	}
	decision, err := limiter.Allow(ctx, key, 2, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed || decision.Remaining != 0 || decision.ResetAt.IsZero() {
		t.Fatalf("expected denial, got %+v", decision)
	}
}

func TestNewRedisLimiter_RequiresAddr(t *testing.T) {
	if _, err := NewRedisLimiter("", "", 0, nil); err == nil {
		t.Fatal("expected error")
	}
}

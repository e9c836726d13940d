package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sealtrail/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sealtrail:ratelimit:"

// incrWindow bumps the counter of one aligned window and sets its expiry
// on first use.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter counts requests in windows aligned to the epoch, so every
// replica sharing the Redis instance agrees on the window boundaries.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (*RedisLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	return NewRedisLimiterWithClient(redis.NewClient(opts), now), nil
}

func NewRedisLimiterWithClient(client *redis.Client, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, now: now}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	if window < time.Millisecond {
		window = time.Second
	}
	start := r.now().Truncate(window)
	bucketKey := redisKeyPrefix + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)

	n, err := incrWindow.Run(ctx, r.client, []string{bucketKey}, window.Milliseconds()).Int64()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return decide(limit, int(n), start.Add(window)), nil
}

func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

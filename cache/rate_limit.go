package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "audio-producer:ratelimit:"

// counter is the subset of redis.Cmdable the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimiter is a fixed-window request counter per client kept in Redis.
type RateLimiter struct {
	store  counter
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(client redis.Cmdable, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{store: client, limit: limit, window: window, now: time.Now}
}

// Allow counts one request for clientID. When the window's limit is
// exceeded it returns false and the time until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, clientID string) (bool, time.Duration, error) {
	if l.window <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window %s", l.window)
	}
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	key := rateLimitKeyPrefix + clientID + ":" + strconv.FormatInt(slot, 10)

	count, err := l.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		// 第一次计数时设置过期时间
		if err := l.store.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set window expiry: %w", err)
		}
	}
	if count > l.limit {
		reset := time.Unix(0, (slot+1)*int64(l.window))
		return false, reset.Sub(now), nil
	}
	return true, 0, nil
}

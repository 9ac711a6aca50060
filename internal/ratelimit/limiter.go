package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "login_attempts"

// LoginLimiter is a Redis sliding window over login attempts.
// A limiter without a client allows everything.
type LoginLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLoginLimiter builds a limiter admitting limit attempts per window.
func NewLoginLimiter(rdb *redis.Client, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true, nil
	}
	if key == "" {
		return false, errors.New("rate limit key required")
	}

	now := l.now().UnixNano()
	start := now - l.window.Nanoseconds()
	limitKey := fmt.Sprintf("%s:%s", keyPrefix, key)
	member := strconv.FormatInt(now, 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, limitKey, "0", strconv.FormatInt(start, 10))
	pipe.ZAdd(ctx, limitKey, redis.Z{Score: float64(now), Member: member})
	countCmd := pipe.ZCard(ctx, limitKey)
	pipe.Expire(ctx, limitKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("record login attempt: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(l.limit) {
		l.rdb.ZRem(ctx, limitKey, member)
		return false, nil
	}
	return true, nil
}

// Reset clears the attempts recorded for key, typically after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Del(ctx, fmt.Sprintf("%s:%s", keyPrefix, key)).Err()
}

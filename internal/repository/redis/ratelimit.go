package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// bookingWindow keeps one sorted-set member per accepted hit, scored by its
// time in milliseconds. A refused hit is not recorded, so retrying while
// limited does not push the window forward.
//
//	KEYS[1] window key
//	ARGV    now_ms, window_ms, limit, member
//	returns {allowed (0|1), hits in window, retry_after_ms}
const bookingWindow = `
local now, window, limit = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

local hits = redis.call('ZCARD', KEYS[1])
if hits >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local wait = window
  if oldest[2] then wait = math.max(0, tonumber(oldest[2]) + window - now) end
  return {0, hits, wait}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, hits + 1, 0}
`

// SlidingWindowLimiter caps how many hits one caller may make per window,
// across every server instance sharing the Redis.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	script *redis.Script
	now    func() time.Time
}

// NewSlidingWindowLimiter returns nil (allow everything) when rdb is nil or
// limit is not positive.
func NewSlidingWindowLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		script: redis.NewScript(bookingWindow),
		now:    time.Now,
	}
}

// Allow records one hit for id if the window has room.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, id string) (allowed bool, current int64, retryAfter time.Duration, err error) {
	if l == nil {
		return true, 0, 0, nil
	}

	vals, err := l.script.Run(ctx, l.rdb,
		[]string{KeyRateLimit(l.scope, id)},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("redisrepo.SlidingWindowLimiter.Allow: %w", err)
	}

	return decodeWindow(vals)
}

func decodeWindow(vals []int64) (allowed bool, current int64, retryAfter time.Duration, err error) {
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected window result %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

package utils

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Slots are sorted-set members scored by their expiry in unix ms. Expired
// members are pruned on every acquire so a crashed holder frees its slot once
// the TTL passes. Re-acquiring with the same holder refreshes the expiry.
var acquireSlotScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now)
if not redis.call('ZSCORE', KEYS[1], ARGV[4]) then
  if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
    return 0
  end
end
redis.call('ZADD', KEYS[1], now + ttl, ARGV[4])
redis.call('PEXPIRE', KEYS[1], ttl)
return 1
`)

// SlotLimiter caps how many holders may own a slot under one key at a time.
type SlotLimiter struct {
	rdb   redis.Cmdable
	limit int
	ttl   time.Duration
	now   func() time.Time
}

func NewSlotLimiter(rdb redis.Cmdable, limit int, ttl time.Duration) (*SlotLimiter, error) {
	switch {
	case rdb == nil:
		return nil, errors.New("slots: redis client is nil")
	case limit <= 0:
		return nil, errors.New("slots: limit must be > 0")
	case ttl <= 0:
		return nil, errors.New("slots: ttl must be > 0")
	}
	return &SlotLimiter{rdb: rdb, limit: limit, ttl: ttl, now: time.Now}, nil
}

// Acquire reports whether holder now owns a slot under key.
func (l *SlotLimiter) Acquire(ctx context.Context, key, holder string) (bool, error) {
	if key == "" || holder == "" {
		return false, errors.New("slots: key and holder are required")
	}
	res, err := acquireSlotScript.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(), l.ttl.Milliseconds(), l.limit, holder).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Release frees holder's slot. Releasing a slot that is not held is a no-op.
func (l *SlotLimiter) Release(ctx context.Context, key, holder string) error {
	if key == "" || holder == "" {
		return errors.New("slots: key and holder are required")
	}
	return l.rdb.ZRem(ctx, key, holder).Err()
}

// InUse counts unexpired slots under key.
func (l *SlotLimiter) InUse(ctx context.Context, key string) (int64, error) {
	return l.rdb.ZCount(ctx, key, "("+strconv.FormatInt(l.now().UnixMilli(), 10), "+inf").Result()
}

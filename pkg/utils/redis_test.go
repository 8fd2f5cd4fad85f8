package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSlotLimiter_AcquireRelease(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	l, err := NewSlotLimiter(rdb, 2, time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := "slots:org-1"

	for _, holder := range []string{"a", "b"} {
		ok, err := l.Acquire(ctx, key, holder)
		if err != nil || !ok {
			t.Fatalf("acquire %s: ok=%v err=%v", holder, ok, err)
		}
	}
	if ok, err := l.Acquire(ctx, key, "c"); err != nil || ok {
		t.Fatalf("third holder should be rejected, ok=%v err=%v", ok, err)
	}
	if ok, err := l.Acquire(ctx, key, "a"); err != nil || !ok {
		t.Fatalf("existing holder should refresh its slot, ok=%v err=%v", ok, err)
	}

	if err := l.Release(ctx, key, "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Release(ctx, key, "a"); err != nil {
		t.Fatalf("double release: %v", err)
	}
	if n, err := l.InUse(ctx, key); err != nil || n != 1 {
		t.Fatalf("in use = %d, %v; want 1", n, err)
	}
	if ok, _ := l.Acquire(ctx, key, "c"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestSlotLimiter_ExpiredHoldersArePruned(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	l, err := NewSlotLimiter(rdb, 1, time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	if ok, _ := l.Acquire(ctx, "k", "crashed"); !ok {
		t.Fatalf("first acquire")
	}
	if ok, _ := l.Acquire(ctx, "k", "next"); ok {
		t.Fatalf("slot should still be held")
	}
	now = now.Add(2 * time.Minute)
	if ok, err := l.Acquire(ctx, "k", "next"); err != nil || !ok {
		t.Fatalf("expired slot should be reclaimed, ok=%v err=%v", ok, err)
	}
}

func TestSlotLimiter_RejectsBadArgs(t *testing.T) {
	_, rdb := newTestRedis(t)
	if _, err := NewSlotLimiter(rdb, 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewSlotLimiter(nil, 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	l, _ := NewSlotLimiter(rdb, 1, time.Second)
	if _, err := l.Acquire(context.Background(), "", "h"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestOpenRedis(t *testing.T) {
	mr, _ := newTestRedis(t)
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdb.Close()
	if got := rdb.Options().PoolSize; got != 20 {
		t.Fatalf("pool size = %d, want 20", got)
	}
}

package opslock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, NewRedisStore(client, "")
}

func TestRedisStoreWindow(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	clock := newFakeClock()
	mgr := NewManager(store, StaticTTL(120*time.Second), WithClock(clock.Now))
	ctx := context.Background()

	if granted, err := mgr.Acquire(ctx, "ops:hourly-batch"); err != nil || !granted {
		t.Fatalf("t=0: granted=%v err=%v", granted, err)
	}
	if ttl := mr.TTL(DefaultRedisPrefix + "ops:hourly-batch"); ttl != 120*time.Second {
		t.Fatalf("expected 120s key ttl, got %v", ttl)
	}

	mr.FastForward(60 * time.Second)
	clock.Advance(60 * time.Second)
	if granted, err := mgr.Acquire(ctx, "ops:hourly-batch"); err != nil || granted {
		t.Fatalf("t=60: granted=%v err=%v", granted, err)
	}

	mr.FastForward(61 * time.Second)
	clock.Advance(61 * time.Second)
	if granted, err := mgr.Acquire(ctx, "ops:hourly-batch"); err != nil || !granted {
		t.Fatalf("t=121: granted=%v err=%v", granted, err)
	}

	status, err := mgr.Status(ctx, "ops:hourly-batch")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if want := clock.Now().Add(120 * time.Second); status == nil || !status.LockedUntil.Equal(want) {
		t.Fatalf("expected locked_until %v, got %+v", want, status)
	}
}

func TestRedisStoreDistinctNames(t *testing.T) {
	t.Parallel()

	_, store := newRedisStore(t)
	mgr := NewManager(store, StaticTTL(time.Minute))
	ctx := context.Background()

	for _, name := range []string{"ops:a", "ops:b"} {
		if granted, err := mgr.Acquire(ctx, name); err != nil || !granted {
			t.Fatalf("%s: granted=%v err=%v", name, granted, err)
		}
	}

	locks, err := mgr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 2 || locks[0].Name != "ops:a" || locks[1].Name != "ops:b" {
		t.Fatalf("unexpected locks: %+v", locks)
	}
}

func TestRedisStoreConcurrentCallersGetOneGrant(t *testing.T) {
	t.Parallel()

	_, store := newRedisStore(t)
	mgr := NewManager(store, StaticTTL(time.Minute))

	var grants atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			granted, err := mgr.Acquire(context.Background(), "x")
			if granted {
				grants.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := grants.Load(); got != 1 {
		t.Fatalf("expected exactly 1 grant, got %d", got)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	mr.Close()

	mgr := NewManager(store, StaticTTL(time.Minute))
	granted, err := mgr.Acquire(context.Background(), "ops:a")
	if granted {
		t.Fatalf("expected no grant with redis down")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisStoreForgetsExpiredWindows(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	clock := newFakeClock()
	mgr := NewManager(store, StaticTTL(30*time.Second), WithClock(clock.Now))
	ctx := context.Background()

	for _, name := range []string{"ops:a", "ops:b"} {
		if granted, err := mgr.Acquire(ctx, name); err != nil || !granted {
			t.Fatalf("%s: granted=%v err=%v", name, granted, err)
		}
	}

	mr.FastForward(31 * time.Second)
	clock.Advance(31 * time.Second)

	locks, err := mgr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 0 {
		t.Fatalf("expected expired windows to be gone, got %+v", locks)
	}
	status, err := mgr.Status(ctx, "ops:a")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != nil {
		t.Fatalf("expected no record after expiry, got %+v", status)
	}
}

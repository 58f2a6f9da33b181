package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", sample{"SOLUSDT", 101.5}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "SOLUSDT" || got.Close != 101.5 {
		t.Fatalf("got %+v", got)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryLimits(2, time.Minute))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	_ = mc.Set(ctx, "b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now more recent than b
	_ = mc.Set(ctx, "c", 3, time.Minute)

	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &v); err != nil || v != 1 {
		t.Fatalf("a = %d, %v", v, err)
	}
}

func TestMemoryLockOwnership(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "session:1", "owner-a", time.Minute)
	if !ok {
		t.Fatal("first lock should succeed")
	}
	ok, _ = mc.TryLock(ctx, "session:1", "owner-b", time.Minute)
	if ok {
		t.Fatal("second lock should fail while held")
	}
	if err := mc.Unlock(ctx, "session:1", "owner-b"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign unlock err = %v", err)
	}
	if err := mc.Unlock(ctx, "session:1", "owner-a"); err != nil {
		t.Fatal(err)
	}
	ok, _ = mc.TryLock(ctx, "session:1", "owner-b", time.Minute)
	if !ok {
		t.Fatal("lock should be free after unlock")
	}
}

func TestLayeredCacheFillsL1(t *testing.T) {
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, time.Minute)
	defer lc.Close()
	ctx := context.Background()

	_ = remote.Set(ctx, "k", sample{"BTCUSDT", 1}, time.Minute)
	var got sample
	if err := lc.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	_ = remote.Delete(ctx, "k")
	got = sample{}
	if err := lc.Get(ctx, "k", &got); err != nil || got.Symbol != "BTCUSDT" {
		t.Fatalf("expected L1 hit, got %+v %v", got, err)
	}
}

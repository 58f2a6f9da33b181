package cache

import (
	"testing"
	"time"
)

func TestRedisOptionsFillSettings(t *testing.T) {
	s := &redisSettings{poolSize: 10, minIdleConns: 2}
	for _, opt := range []RedisOption{
		WithRedisAddr("cache.internal", 6380),
		WithRedisAuth("secret", 3),
		WithRedisPool(0, 5),
		WithRedisPrefix("st"),
	} {
		opt(s)
	}

	if s.addr != "cache.internal:6380" {
		t.Fatalf("addr = %q", s.addr)
	}
	if s.password != "secret" || s.db != 3 {
		t.Fatalf("auth = %q/%d", s.password, s.db)
	}
	if s.poolSize != 10 || s.minIdleConns != 5 {
		t.Fatalf("pool = %d/%d, zero size should keep the default", s.poolSize, s.minIdleConns)
	}
	if s.prefix != "st" {
		t.Fatalf("prefix = %q", s.prefix)
	}
}

func TestMemoryLimitsKeepDefaultsForZero(t *testing.T) {
	s := &memorySettings{maxSize: 1000, sweep: 5 * time.Minute}
	WithMemoryLimits(0, time.Second)(s)
	if s.maxSize != 1000 || s.sweep != time.Second {
		t.Fatalf("got %d/%s", s.maxSize, s.sweep)
	}
	WithMemoryLimits(50, 0)(s)
	if s.maxSize != 50 || s.sweep != time.Second {
		t.Fatalf("got %d/%s", s.maxSize, s.sweep)
	}
}

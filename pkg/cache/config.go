package cache

import (
	"fmt"
	"time"
)

// RedisOption adjusts the connection settings used by NewRedisCache.
type RedisOption func(*redisSettings)

type redisSettings struct {
	addr         string
	password     string
	db           int
	poolSize     int
	minIdleConns int
	poolTimeout  time.Duration
	prefix       string
}

// WithRedisAddr points the client at host:port.
func WithRedisAddr(host string, port int) RedisOption {
	return func(s *redisSettings) {
		s.addr = fmt.Sprintf("%s:%d", host, port)
	}
}

// WithRedisAuth selects the logical database and its password.
func WithRedisAuth(password string, db int) RedisOption {
	return func(s *redisSettings) {
		s.password = password
		s.db = db
	}
}

// WithRedisPool sizes the connection pool. Zero values keep the defaults.
func WithRedisPool(size, minIdle int) RedisOption {
	return func(s *redisSettings) {
		if size > 0 {
			s.poolSize = size
		}
		if minIdle > 0 {
			s.minIdleConns = minIdle
		}
	}
}

// WithRedisPrefix namespaces every key written through the cache.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *redisSettings) {
		s.prefix = prefix
	}
}

// MemoryOption adjusts an in-process cache.
type MemoryOption func(*memorySettings)

type memorySettings struct {
	maxSize int
	sweep   time.Duration
}

// WithMemoryLimits caps the entry count and sets how often expired entries
// are swept. Non-positive values keep the defaults.
func WithMemoryLimits(maxSize int, sweep time.Duration) MemoryOption {
	return func(s *memorySettings) {
		if maxSize > 0 {
			s.maxSize = maxSize
		}
		if sweep > 0 {
			s.sweep = sweep
		}
	}
}

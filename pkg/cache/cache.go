package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	ErrNotOwner  = errors.New("cache: lock held by another owner")
)

// Service defines cache operations interface. Values are stored as JSON.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock sets key to owner if absent. It reports whether the lock was taken.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Unlock removes key only when it still holds owner.
	Unlock(ctx context.Context, key, owner string) error
	Close() error
}

// GenerateKey joins a prefix and parameters into a colon separated key.
func GenerateKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

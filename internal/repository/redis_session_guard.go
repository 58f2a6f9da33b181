package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	applogger "ShadowTrade/pkg/logger"
)

// releaseScript deletes the slot only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisSessionGuard provides the single in-flight slot per session across
// processes. The TTL bounds how long a crashed holder can block a session.
type RedisSessionGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	l      *applogger.Logger

	newToken func() string
}

func NewRedisSessionGuard(client *redis.Client, prefix string, ttl time.Duration, l *applogger.Logger) *RedisSessionGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSessionGuard{client: client, prefix: prefix, ttl: ttl, l: l, newToken: uuid.NewString}
}

var _ domrepo.SessionGuard = (*RedisSessionGuard)(nil)

func (g *RedisSessionGuard) key(sessionID string) string {
	return fmt.Sprintf("%s:inflight:%s", g.prefix, sessionID)
}

func (g *RedisSessionGuard) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := g.key(sessionID)
	token := g.newToken()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session slot: %w", err)
	}
	if !ok {
		return nil, models.ErrBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil {
			g.l.Warn("release session slot failed", applogger.String("session_id", sessionID), applogger.Error(err))
		}
	}, nil
}

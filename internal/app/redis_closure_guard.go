package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultClosureGuardTTL = 60 * time.Second

// RedisClosureGuard is a best-effort distributed guard against two instances
// racing to close the same flight plan. The conditional status update in the
// store is authoritative; this only short-circuits the common duplicate
// request before it reaches Postgres.
type RedisClosureGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisClosureGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisClosureGuard {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "settlement:closure"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = defaultClosureGuardTTL
	}

	return &RedisClosureGuard{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

// Acquire claims the closure slot for a plan. Returns false when another
// closure holds it. A nil guard or client always grants.
func (g *RedisClosureGuard) Acquire(ctx context.Context, planID uuid.UUID) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	return g.client.SetNX(ctx, g.key(planID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

// Release frees the slot early so a legitimate retry (e.g. after a failed
// plan load) does not have to wait out the TTL.
func (g *RedisClosureGuard) Release(ctx context.Context, planID uuid.UUID) {
	if g == nil || g.client == nil {
		return
	}
	g.client.Del(ctx, g.key(planID))
}

func (g *RedisClosureGuard) key(planID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", g.prefix, planID)
}

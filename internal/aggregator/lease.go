package aggregator

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

// Lease guards the single-writer invariant when more than one hub process
// shares a store.
type Lease interface {
	// Acquire returns true when this process holds the lease for the
	// current cycle.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease up early; expiry covers crashed holders.
	Release(ctx context.Context)
}

// RedisLease implements Lease with a redis SET NX key carrying a TTL.
type RedisLease struct {
	client *redis.Client
	key    string
	holder string
	ttl    time.Duration
}

// NewRedisLease creates a lease on the given key.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		key:    key,
		holder: nuts.NID("agg", 12),
		ttl:    ttl,
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) {
	current, err := l.client.Get(ctx, l.key).Result()
	if err != nil || current != l.holder {
		return
	}
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		nuts.L.Warnf("[Aggregator] Failed to release lease: %v", err)
	}
}

package automation

import (
	"context"
	"time"

	"github.com/brandops/platform-backend/pkg/redis"
)

// Locker guards the schedule sweep so only one engine instance fires a given
// tick when several replicas share a database.
type Locker interface {
	Acquire(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope string) error
}

type redisLock struct {
	client *redis.Client
}

// NewRedisLock returns a Locker backed by redis SETNX keys.
func NewRedisLock(client *redis.Client) Locker {
	return &redisLock{client: client}
}

func (l *redisLock) Acquire(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.client.LockKey(scope), time.Now().UTC().Format(time.RFC3339), ttl)
}

func (l *redisLock) Release(ctx context.Context, scope string) error {
	return l.client.Del(ctx, l.client.LockKey(scope))
}

type noopLock struct{}

// NewNoopLock returns a Locker that always grants, for single-instance
// deployments and tests.
func NewNoopLock() Locker { return noopLock{} }

func (noopLock) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (noopLock) Release(context.Context, string) error                        { return nil }

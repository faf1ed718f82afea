package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"travel-platform/pkg/utils"
)

// Locker is a named distributed lock with an owner token. Acquire is
// non-blocking: ok=false means another instance holds the lock and the
// caller should skip this run.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}

// RedisLocker implements Locker on a shared redis instance so that only one
// process in the fleet runs a given job at a time.
type RedisLocker struct {
	rdb *redis.Client

	// Prefix namespaces lock keys, e.g. "scheduled_job:".
	Prefix string
}

func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, Prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := utils.AcquireNamedLock(ctx, l.rdb, l.Prefix+name, token, ttl)
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, name, token string) error {
	return utils.ReleaseNamedLock(ctx, l.rdb, l.Prefix+name, token)
}

// MemoryLocker is a process-local Locker for single-instance deployments
// and tests. Expired locks are reclaimed on the next Acquire.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	clock func() time.Time
}

type memoryLock struct {
	token    string
	deadline time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock), clock: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if held, ok := l.locks[name]; ok && held.deadline.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[name] = memoryLock{token: token, deadline: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.locks[name]; ok && held.token == token {
		delete(l.locks, name)
	}
	return nil
}

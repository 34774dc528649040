package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle holds short-lived named locks.  The submission lock and the
// resend debounce both use it.
type Throttle interface {
	// Acquire takes key for ttl and reports false if it is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Held(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NewThrottle returns a Redis-backed throttle, or an in-process one when rdb
// is nil.  The in-process variant is only correct for a single replica.
func NewThrottle(rdb *redis.Client, prefix string) Throttle {
	if rdb == nil {
		return NewMemoryThrottle()
	}
	return &RedisThrottle{rdb: rdb, prefix: prefix}
}

// RedisThrottle implements Throttle with SET NX PX.
type RedisThrottle struct {
	rdb    *redis.Client
	prefix string
}

func (t *RedisThrottle) key(k string) string { return t.prefix + ":" + k }

func (t *RedisThrottle) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.rdb.SetNX(ctx, t.key(key), time.Now().UnixMilli(), ttl).Result()
}

func (t *RedisThrottle) Held(ctx context.Context, key string) (bool, error) {
	n, err := t.rdb.Exists(ctx, t.key(key)).Result()
	return n > 0, err
}

func (t *RedisThrottle) Release(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, t.key(key)).Err()
}

// MemoryThrottle implements Throttle in process memory.
type MemoryThrottle struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{until: make(map[string]time.Time), now: time.Now}
}

func (t *MemoryThrottle) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if exp, ok := t.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	t.until[key] = now.Add(ttl)
	t.sweep(now)
	return true, nil
}

func (t *MemoryThrottle) Held(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.until[key]
	return ok && t.now().Before(exp), nil
}

func (t *MemoryThrottle) Release(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.until, key)
	t.mu.Unlock()
	return nil
}

// sweep drops expired keys; caller holds mu.
func (t *MemoryThrottle) sweep(now time.Time) {
	if len(t.until) < 1024 {
		return
	}
	for k, exp := range t.until {
		if !now.Before(exp) {
			delete(t.until, k)
		}
	}
}

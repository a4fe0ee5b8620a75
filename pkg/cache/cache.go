package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service is the cache used for per-run memos and job locks. Values are
// stored as JSON, so Get decodes into dest the way json.Unmarshal does.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// GetOrLoad returns the cached value for key, calling load and storing its
// result on a miss. Cache failures fall through to load; a failed store is ignored.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

// WithLock runs fn only if the lock on key could be taken. It reports whether fn ran.
func WithLock(ctx context.Context, c Service, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	ok, err := c.TryLock(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	defer func() { _ = c.Unlock(context.WithoutCancel(ctx), key) }()
	return true, fn(ctx)
}

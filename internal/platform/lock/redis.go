package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/koreacc/koreacc/internal/shared"
)

// ProcessLocker guards multi-transaction sequences (the close/carry-forward
// saga) across instances. Backed by redislock; losing the race surfaces as
// shared.ErrConcurrency so callers can retry the whole operation.
type ProcessLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewProcessLocker wraps a redis client. ttl bounds how long a crashed
// holder can keep the scope blocked.
func NewProcessLocker(rdb *redis.Client, ttl time.Duration) *ProcessLocker {
	return &ProcessLocker{client: redislock.New(rdb), ttl: ttl}
}

// Obtain takes the named lock or fails without blocking. The returned
// function releases the lock.
func (l *ProcessLocker) Obtain(ctx context.Context, key string) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %q already held: %w", key, shared.ErrConcurrency)
	}
	if err != nil {
		return nil, err
	}
	return lk.Release, nil
}

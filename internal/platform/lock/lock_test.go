package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koreacc/koreacc/internal/shared"
)

func newTestLocker(t *testing.T) *ProcessLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewProcessLocker(rdb, time.Minute)
}

func TestProcessLockerObtainAndRelease(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Obtain(ctx, "close:1")
	require.NoError(t, err)

	// Second holder loses the race without blocking.
	_, err = locker.Obtain(ctx, "close:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrency)

	// A different scope is free.
	other, err := locker.Obtain(ctx, "close:2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	release, err = locker.Obtain(ctx, "close:1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestLocalLockerObtainAndRelease(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release, err := locker.Obtain(ctx, "close:1")
	require.NoError(t, err)

	// Second holder loses the race without blocking.
	_, err = locker.Obtain(ctx, "close:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrency)

	// A different scope is free.
	other, err := locker.Obtain(ctx, "close:2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	release, err = locker.Obtain(ctx, "close:1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestKeyedMutexSerializes(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	require.NoError(t, km.Acquire(ctx, nil, "scope"))
	done := make(chan struct{})
	go func() {
		_ = km.Acquire(ctx, nil, "scope")
		km.Release("scope")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquire succeeded while scope still held")
	case <-time.After(20 * time.Millisecond):
	}

	km.Release("scope")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquire never succeeded after release")
	}
}

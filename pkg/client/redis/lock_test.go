package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_AcquireRelease(t *testing.T) {
	flushDB(t)
	ctx := context.Background()

	first, err := testClient.NewLock("jobqueue:lock:maintenance", time.Minute)
	require.NoError(t, err)
	second, err := testClient.NewLock("jobqueue:lock:maintenance", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, second.Release(ctx), ErrLockNotAcquired)
	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	flushDB(t)
	ctx := context.Background()

	first, err := testClient.NewLock("lock:ttl", 5*time.Second)
	require.NoError(t, err)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	testServer.FastForward(6 * time.Second)

	second, err := testClient.NewLock("lock:ttl", 5*time.Second)
	require.NoError(t, err)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, first.Release(ctx), ErrLockNotAcquired)
}

func TestLock_RetryWaitsForHolder(t *testing.T) {
	flushDB(t)
	ctx := context.Background()

	holder, err := testClient.NewLock("lock:retry", time.Minute)
	require.NoError(t, err)
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = holder.Release(ctx)
	}()

	waiter, err := testClient.NewLock("lock:retry", time.Minute, WithLockRetry(20, 10*time.Millisecond))
	require.NoError(t, err)
	ok, err = waiter.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLock_InvalidTTL(t *testing.T) {
	_, err := testClient.NewLock("lock:bad", 0)
	assert.Error(t, err)
}

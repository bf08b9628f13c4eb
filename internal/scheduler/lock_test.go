package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*JobLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	lock, err := NewJobLock("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Close() })
	return lock, mr
}

func TestJobLock_SecondAcquireFails(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.False(t, acquired)

	// A different company's key is an independent lease.
	acquired, err = lock.TryAcquire(ctx, "engine:lock:test:co-2")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestJobLock_ReleaseFreesLease(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.True(t, acquired)

	lock.Release(ctx, "engine:lock:test:co-1")

	acquired, err = lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestJobLock_LeaseExpires(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.True(t, acquired)

	// A crashed worker never releases; the TTL must free the lease.
	mr.FastForward(jobLockTTL + time.Minute)

	acquired, err = lock.TryAcquire(ctx, "engine:lock:test:co-1")
	require.NoError(t, err)
	require.True(t, acquired)
}

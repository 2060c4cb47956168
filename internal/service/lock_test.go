package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLockKey = "movie-explorer:seed-lock:test"

func newTestLock(t *testing.T, m *miniredis.Miniredis, ttl time.Duration) *RedisLock {
	t.Helper()
	lock := NewRedisLock(redis.NewClient(&redis.Options{Addr: m.Addr()}), testLockKey, ttl)
	t.Cleanup(func() { _ = lock.Close() })
	return lock
}

// waitRenewed 等待续期把剩余 TTL 拉回接近满值
func waitRenewed(t *testing.T, m *miniredis.Miniredis, ttl time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.TTL(testLockKey) > ttl*9/10
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisLockRenewsWhileHeld(t *testing.T) {
	m := miniredis.RunT(t)
	ttl := 300 * time.Millisecond
	first := newTestLock(t, m, ttl)
	second := newTestLock(t, m, ttl)

	ctx, release, err := first.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	// 累计快进远超 TTL，持有者仍在续期，锁不会被第二个任务拿到
	for i := 0; i < 6; i++ {
		m.FastForward(ttl / 2)
		waitRenewed(t, m, ttl)
	}
	_, _, err = second.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, ctx.Err())
}

func TestRedisLockReleaseStopsRenewal(t *testing.T) {
	m := miniredis.RunT(t)
	ttl := 300 * time.Millisecond
	first := newTestLock(t, m, ttl)
	second := newTestLock(t, m, ttl)

	ctx, release, err := first.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	assert.False(t, m.Exists(testLockKey))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.NotErrorIs(t, context.Cause(ctx), ErrLockLost)

	_, releaseSecond, err := second.Acquire(context.Background())
	require.NoError(t, err)
	defer releaseSecond()
}

func TestRedisLockLostCancelsContext(t *testing.T) {
	m := miniredis.RunT(t)
	ttl := 300 * time.Millisecond
	lock := newTestLock(t, m, ttl)

	ctx, release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	// 锁过期后被另一个任务拿走
	require.NoError(t, m.Set(testLockKey, "someone-else"))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lock context not cancelled after losing the lock")
	}
	assert.ErrorIs(t, context.Cause(ctx), ErrLockLost)

	// 释放不会删除别人的锁
	release()
	v, err := m.Get(testLockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedisLockFollowsParentContext(t *testing.T) {
	m := miniredis.RunT(t)
	lock := newTestLock(t, m, time.Second)

	parent, cancel := context.WithCancel(context.Background())
	ctx, release, err := lock.Acquire(parent)
	require.NoError(t, err)
	defer release()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

func TestNoopLockReturnsCallerContext(t *testing.T) {
	parent := context.WithValue(context.Background(), struct{}{}, "v")
	ctx, release, err := NoopLock{}.Acquire(parent)
	require.NoError(t, err)
	release()
	assert.Equal(t, parent, ctx)
}

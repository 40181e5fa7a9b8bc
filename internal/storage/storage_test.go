package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisClientFrom(client), mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	locker, mr := newTestRedis(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("registry:lock:ingest"))

	_, err = locker.Acquire(ctx, "ingest", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.False(t, mr.Exists("registry:lock:ingest"))

	release2, err := locker.Acquire(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestRedisLockExpires(t *testing.T) {
	locker, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "import", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, "import", time.Second)
	require.NoError(t, err)
	release()
}

func TestStaleReleaseDoesNotDropNewLock(t *testing.T) {
	locker, mr := newTestRedis(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "import", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	_, err = locker.Acquire(ctx, "import", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("registry:lock:import"))
}

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), "x", time.Second)
	require.NoError(t, err)
	release()
}

func TestCountingReadCloser(t *testing.T) {
	var got int64
	rc := NewCountingReadCloser(io.NopCloser(strings.NewReader("hello")), func(n int64) { got = n })
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, rc.Close())
	assert.Equal(t, int64(5), got)
}

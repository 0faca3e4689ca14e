package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLockers(t *testing.T) (*Locker, *Locker, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	a, err := New("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	b := NewWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	t.Cleanup(func() { _ = b.Close() })
	return a, b, s
}

func TestTryAcquire_Exclusive(t *testing.T) {
	a, b, _ := setupLockers(t)
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "token-refresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx, "token-refresh", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.TryAcquire(ctx, "token-refresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "holder can extend its own lease")
}

func TestTryAcquire_AfterExpiry(t *testing.T) {
	a, b, s := setupLockers(t)
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "job", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(31 * time.Second)

	ok, err = b.TryAcquire(ctx, "job", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_OnlyByOwner(t *testing.T) {
	a, b, s := setupLockers(t)
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "job"))
	assert.True(t, s.Exists("lease:job"))

	require.NoError(t, a.Release(ctx, "job"))
	assert.False(t, s.Exists("lease:job"))

	ok, err = b.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAccountLock(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name(), "test:", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	ctx := context.Background()
	lock := NewRedisAccountLock(adapter, time.Minute)

	unlock, err := lock.Lock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:import-lock:7"))

	_, err = lock.Lock(ctx, 7)
	assert.ErrorIs(t, err, ErrAccountBusy)

	other, err := lock.Lock(ctx, 8)
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("test:import-lock:7"))

	again, err := lock.Lock(ctx, 7)
	require.NoError(t, err)
	again()
}

func TestRedisAccountLock_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	ctx := context.Background()
	lock := NewRedisAccountLock(adapter, time.Second)

	stale, err := lock.Lock(ctx, 7)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lock.Lock(ctx, 7)
	require.NoError(t, err, "an expired lock does not block the account")

	stale()
	assert.True(t, mr.Exists("import-lock:7"), "a stale holder cannot release a newer lock")
	fresh()
	assert.False(t, mr.Exists("import-lock:7"))
}

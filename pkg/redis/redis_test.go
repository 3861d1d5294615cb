package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*miniredis.Miniredis, RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter(t.Name(), "test:", &Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return mr, adapter
}

func TestAdapter_PrefixesKeys(t *testing.T) {
	mr, adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("test:k"))

	got, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = adapter.Get(ctx, "missing")
	assert.ErrorIs(t, err, NilError)
}

func TestAdapter_SetNXAndDelIfEqual(t *testing.T) {
	_, adapter := newTestAdapter(t)
	ctx := context.Background()

	ok, err := adapter.SetNX(ctx, "lock", []byte("owner-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.SetNX(ctx, "lock", []byte("owner-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := adapter.DelIfEqual(ctx, "lock", []byte("owner-b"))
	require.NoError(t, err)
	assert.False(t, released)

	released, err = adapter.DelIfEqual(ctx, "lock", []byte("owner-a"))
	require.NoError(t, err)
	assert.True(t, released)

	n, err := adapter.Exist(ctx, "lock")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdapter_RegistryReturnsSameInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := NewRedisAdapter("registry-"+t.Name(), "", &Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewRedisAdapter("registry-"+t.Name(), "", &Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, a, GetRedis("registry-"+t.Name()))
}

func TestAdapter_StreamRoundTrip(t *testing.T) {
	_, adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.XGroupCreateMkStream(ctx, "s", "g", "0"))
	id, err := adapter.XAdd(ctx, "s", map[string]interface{}{"data": "hello"})
	require.NoError(t, err)

	msgs, err := adapter.XReadGroup(ctx, "g", "c1", "s", ">", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Values["data"])

	pending, err := adapter.XPending(ctx, "s", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)

	require.NoError(t, adapter.XAck(ctx, "s", "g", id))
	pending, err = adapter.XPending(ctx, "s", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Count)

	n, err := adapter.XLen(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

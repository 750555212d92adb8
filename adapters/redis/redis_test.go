package redis

import (
	"context"
	"testing"
	"time"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tally struct {
	Count int      `json:"count"`
	Seen  []string `json:"seen"`
}

func newManager(t *testing.T) (*RedisManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisManagerFromClient(client, "relay"), mr
}

func TestKeyIsNamespaced(t *testing.T) {
	m, _ := newManager(t)
	assert.Equal(t, "relay:saga:tally:c-1", m.Key("saga", "tally", "c-1"))
	assert.Equal(t, "a:b", NewRedisManagerFromClient(nil, "").Key("a", "b"))
}

func TestNewRedisManagerPings(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	m, err := NewRedisManager(Config{Addr: addr, KeyPrefix: "relay"})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	mr.Close()
	_, err = NewRedisManager(Config{Addr: addr})
	assert.Error(t, err)
}

func TestIdempotencyStore(t *testing.T) {
	m, mr := newManager(t)
	store := NewIdempotencyStore(m, time.Minute)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "fp"))
	seen, err = store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("relay:fingerprint:fp"))

	mr.FastForward(2 * time.Minute)
	seen, err = store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestIdempotencyStoreErrorIsRetryable(t *testing.T) {
	m, mr := newManager(t)
	store := NewIdempotencyStore(m, time.Minute)
	mr.Close()

	_, err := store.Seen(context.Background(), "fp")
	require.Error(t, err)
	assert.True(t, blame.IsRetryable(err))
}

func TestSagaStoreLifecycle(t *testing.T) {
	for _, c := range []struct {
		name  string
		codec types.CodecType
	}{{"msgpack", codec.MsgPack}, {"json", codec.JSON}} {
		t.Run(c.name, func(t *testing.T) {
			m, _ := newManager(t)
			store := NewSagaStore(m, "tally", WithCodec[*tally](c.codec))
			ctx := context.Background()

			_, found, err := store.Load(ctx, "c-1")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Save(ctx, "c-1", &tally{Count: 2, Seen: []string{"a", "b"}}))
			require.NoError(t, store.Save(ctx, "c-2", &tally{Count: 1}))
			assert.Equal(t, 2, store.Len())

			got, found, err := store.Load(ctx, "c-1")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, &tally{Count: 2, Seen: []string{"a", "b"}}, got)

			require.NoError(t, store.Delete(ctx, "c-1"))
			assert.Equal(t, 1, store.Len())
			_, found, err = store.Load(ctx, "c-1")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSagaStoreRetentionDropsIndexOnLoad(t *testing.T) {
	m, mr := newManager(t)
	store := NewSagaStore(m, "tally", WithStateRetention[*tally](time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "c-1", &tally{Count: 1}))
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, 1, store.Len())

	_, found, err := store.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, store.Len())
}

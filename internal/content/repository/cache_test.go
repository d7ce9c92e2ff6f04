package repository

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "salon_data_backup")
	require.ErrorIs(t, err, ErrCacheMiss)

	val := []byte(`{"a":1}`)
	require.NoError(t, c.Set(ctx, "salon_data_backup", val, 0))
	val[0] = 'X' // stored value must not alias the caller's slice

	got, err := c.Get(ctx, "salon_data_backup")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, c.Delete(ctx, "salon_data_backup"))
	_, err = c.Get(ctx, "salon_data_backup")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 17, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache().WithClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "salon_auth:abc", []byte("s"), 2*time.Hour))
	_, err := c.Get(ctx, "salon_auth:abc")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = c.Get(ctx, "salon_auth:abc")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	c := NewRedisCache(client, "salon:")
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	_, err = c.Get(ctx, "salon_data_backup")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "salon_data_backup", []byte("doc"), 0))
	require.True(t, m.Exists("salon:salon_data_backup"))
	got, err := c.Get(ctx, "salon_data_backup")
	require.NoError(t, err)
	require.Equal(t, "doc", string(got))

	require.NoError(t, c.Set(ctx, "salon_auth:s1", []byte("sess"), time.Minute))
	m.FastForward(61 * time.Second)
	_, err = c.Get(ctx, "salon_auth:s1")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, "salon_data_backup"))
	require.False(t, m.Exists("salon:salon_data_backup"))
}

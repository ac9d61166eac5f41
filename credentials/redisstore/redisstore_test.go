package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/credentials/redisstore"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "desk-1")

	_, ok, err := s.Get(ctx, credentials.KeyAccess)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, credentials.KeyAccess, "a1"))
	require.NoError(t, s.Set(ctx, credentials.KeyRefresh, "r1"))
	require.Equal(t, "a1", mr.HGet("portal:credentials:desk-1", "access"))

	v, ok, err := s.Get(ctx, credentials.KeyRefresh)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r1", v)

	require.NoError(t, s.Delete(ctx, credentials.TokenKeys...))
	require.NoError(t, s.Delete(ctx))
	_, ok, err = s.Get(ctx, credentials.KeyAccess)
	require.NoError(t, err)
	require.False(t, ok)

	other := redisstore.New(rdb, "")
	require.NoError(t, other.Set(ctx, credentials.KeyRole, "admin"))
	require.Equal(t, "admin", mr.HGet("portal:credentials:default", "role"))
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := redisstore.New(rdb, "desk-1")
	mr.Close()

	_, _, err := s.Get(ctx, credentials.KeyAccess)
	require.ErrorIs(t, err, perrors.ErrStorage)
}

func TestConnect(t *testing.T) {
	mr, _ := newTestRedis(t)
	rdb, err := redisstore.Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, rdb.Close())
}

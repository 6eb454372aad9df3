package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestClient_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))
	require.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, c.Delete(ctx, "k"))
	require.False(t, mr.Exists("k"))
}

func TestClient_IncrementWithTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	n, err := c.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.IncrementWithTTL(ctx, "rl", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// the window is not extended by later increments
	require.Equal(t, time.Minute, mr.TTL("rl"))

	mr.FastForward(61 * time.Second)
	require.False(t, mr.Exists("rl"))

	n, err = c.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestClient_IncrementHealsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, mr.Set("rl", "7"))
	n, err := c.IncrementWithTTL(ctx, "rl", 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
	require.Equal(t, 30*time.Second, mr.TTL("rl"))
}

func TestClient_IncrementResetsCorruptCounter(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, mr.Set("rl", "garbage"))
	n, err := c.IncrementWithTTL(ctx, "rl", 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 30*time.Second, mr.TTL("rl"))

	n, err = c.IncrementWithTTL(ctx, "rl", 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestClient_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("p:conversation:u1:c%d:context", i), "x"))
	}
	require.NoError(t, mr.Set("p:conversation:u10:c1:context", "x"))
	require.NoError(t, mr.Set("p:ai:costs:u1:2025-01-31", "x"))

	n, err := c.DeletePrefix(ctx, "p:conversation:u1:")
	require.NoError(t, err)
	require.Equal(t, int64(250), n)
	require.False(t, mr.Exists("p:conversation:u1:c0:context"))
	require.True(t, mr.Exists("p:conversation:u10:c1:context"))
	require.True(t, mr.Exists("p:ai:costs:u1:2025-01-31"))
}

func TestClient_DeletePrefixEscapesGlob(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, mr.Set("p:rate_limit:u*:chat", "1"))
	require.NoError(t, mr.Set("p:rate_limit:u2:chat", "1"))

	n, err := c.DeletePrefix(ctx, "p:rate_limit:u*:")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.True(t, mr.Exists("p:rate_limit:u2:chat"))
	require.Equal(t, `a\*b\?\[c\]\\`, escapePattern(`a*b?[c]\`))
}

func TestClient_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	_, err := c.TTL(ctx, "missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, mr.Set("forever", "x"))
	ttl, err := c.TTL(ctx, "forever")
	require.NoError(t, err)
	require.Equal(t, kvstore.NoExpiry, ttl)

	require.NoError(t, c.Set(ctx, "temp", []byte("x"), 45*time.Second))
	ttl, err = c.TTL(ctx, "temp")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, ttl)
}

func TestClient_BackendErrorsAreUnavailable(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	mr.SetError("ERR backend down")
	t.Cleanup(func() { mr.SetError("") })

	_, err := c.Get(ctx, "k")
	require.True(t, kvstore.IsUnavailable(err))

	err = c.Set(ctx, "k", []byte("v"), time.Minute)
	require.True(t, kvstore.IsUnavailable(err))

	_, err = c.IncrementWithTTL(ctx, "k", time.Minute)
	require.True(t, kvstore.IsUnavailable(err))

	_, err = c.DeletePrefix(ctx, "p:")
	require.True(t, kvstore.IsUnavailable(err))

	require.True(t, kvstore.IsUnavailable(c.Ping(ctx)))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url://")
	require.Error(t, err)
}

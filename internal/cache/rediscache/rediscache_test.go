package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, Options) {
	mr := miniredis.RunT(t)
	return mr, Options{Addr: mr.Addr()}
}

func TestRedisCache_GetSetDel(t *testing.T) {
	_, opts := newClient(t)
	c := New(NewClient(opts))

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Del(ctx))
	require.NoError(t, c.Ping(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr, opts := newClient(t)
	c := New(NewClient(opts))

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, opts := newClient(t)
	rl := NewRateLimiter(NewClient(opts))

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// окно закрылось
	mr.FastForward(61 * time.Second)
	ok, n, err = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestSessionStore(t *testing.T) {
	mr, opts := newClient(t)
	ss := NewSessionStore(NewClient(opts), time.Hour)

	ctx := context.Background()
	in := &models.Session{
		AdminID:  uuid.New(),
		Email:    "root@example.com",
		Name:     "Root",
		Role:     models.AdminRoleSuperAdmin,
		IssuedAt: time.Now().UTC().Truncate(time.Second),
	}
	token, err := ss.Create(ctx, in)
	require.NoError(t, err)
	require.Len(t, token, 72)

	got, ok, err := ss.Get(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in.AdminID, got.AdminID)
	require.True(t, in.IssuedAt.Equal(got.IssuedAt))

	_, ok, err = ss.Get(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = ss.Get(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ss.Delete(ctx, token))
	_, ok, _ = ss.Get(ctx, token)
	require.False(t, ok)

	token, err = ss.Create(ctx, in)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, ok, err = ss.Get(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
}

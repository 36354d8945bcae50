package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*Cache{nil, New(nil)} {
		var out []string
		assert.NoError(t, c.Set(ctx, "k", []string{"a"}, time.Minute))
		assert.False(t, c.Get(ctx, "k", &out))
		assert.Equal(t, "0", c.Version(ctx, "gigs"))
		c.Bump(ctx, "gigs")
	}
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestGetSetAndExpiry(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	var out []string
	assert.False(t, c.Get(ctx, "k", &out))

	require.NoError(t, c.Set(ctx, "k", []string{"a", "b"}, time.Minute))
	require.True(t, c.Get(ctx, "k", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, "k", &out))
}

func TestBumpInvalidatesVersionedKeys(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	key := func() string { return "gigs:" + c.Version(ctx, "gigs") + ":page1" }
	assert.Equal(t, "0", c.Version(ctx, "gigs"))
	require.NoError(t, c.Set(ctx, key(), "first", time.Minute))

	var out string
	require.True(t, c.Get(ctx, key(), &out))

	c.Bump(ctx, "gigs")
	assert.Equal(t, "1", c.Version(ctx, "gigs"))
	assert.False(t, c.Get(ctx, key(), &out), "old generation is no longer read")
}

func TestBumpFailureIsLogged(t *testing.T) {
	c, mr := newRedisCache(t)
	var buf bytes.Buffer
	ctx := logger.Inject(context.Background(), logger.New("test", &buf))

	mr.Close()
	c.Bump(ctx, "gigs")
	assert.Contains(t, buf.String(), "cache bump failed")
	assert.Contains(t, buf.String(), "ns=gigs")
}

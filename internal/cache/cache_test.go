package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupCache(t *testing.T, ttl time.Duration) (*JSONCache[item], *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewJSONCache[item](client, "items:", ttl), mr
}

func TestJSONCache(t *testing.T) {
	c := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		cache, _ := setupCache(t, time.Minute)
		_, err := cache.Get(c, "a")
		assert.ErrorIs(t, err, ErrCacheMiss)

		require.NoError(t, cache.Set(c, "a", item{Name: "bolt", Count: 3}))
		got, err := cache.Get(c, "a")
		require.NoError(t, err)
		assert.Equal(t, item{Name: "bolt", Count: 3}, got)
	})

	t.Run("ttl has bounded jitter", func(t *testing.T) {
		cache, mr := setupCache(t, 10*time.Minute)
		require.NoError(t, cache.Set(c, "a", item{}))
		ttl := mr.TTL("items:a")
		assert.GreaterOrEqual(t, ttl, 10*time.Minute)
		assert.LessOrEqual(t, ttl, 12*time.Minute)
	})

	t.Run("expired entry misses", func(t *testing.T) {
		cache, mr := setupCache(t, time.Minute)
		require.NoError(t, cache.Set(c, "a", item{}))
		mr.FastForward(2 * time.Minute)
		_, err := cache.Get(c, "a")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("delete removes every key", func(t *testing.T) {
		cache, mr := setupCache(t, time.Minute)
		require.NoError(t, cache.Set(c, "a", item{}))
		require.NoError(t, cache.Set(c, "b", item{}))
		require.NoError(t, cache.Delete(c, "a", "b"))
		assert.False(t, mr.Exists("items:a"))
		assert.False(t, mr.Exists("items:b"))
		assert.NoError(t, cache.Delete(c))
	})

	t.Run("corrupt value is an error not a miss", func(t *testing.T) {
		cache, mr := setupCache(t, time.Minute)
		require.NoError(t, mr.Set("items:a", "{not json"))
		_, err := cache.Get(c, "a")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("unreachable redis is an error", func(t *testing.T) {
		cache, mr := setupCache(t, time.Minute)
		mr.Close()
		_, err := cache.Get(c, "a")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	})
}

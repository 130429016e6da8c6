package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Alturino/storefront/internal/cache"
	"github.com/Alturino/storefront/internal/config"
)

func TestNewCacheClient(t *testing.T) {
	c := context.Background()

	container, err := testRedis.Run(c, "redis:7.4-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(c)
	require.NoError(t, err)
	port, err := container.MappedPort(c, "6379/tcp")
	require.NoError(t, err)

	client := NewCacheClient(c, config.Cache{Host: host, Port: uint16(port.Int())})
	t.Cleanup(func() { client.Close() })

	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	entries := cache.NewJSONCache[entry](client, "test:", time.Minute)

	_, err = entries.Get(c, "a")
	require.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, entries.Set(c, "a", entry{Name: "bolts", Count: 3}))
	got, err := entries.Get(c, "a")
	require.NoError(t, err)
	assert.Equal(t, entry{Name: "bolts", Count: 3}, got)

	ttl, err := client.TTL(c, entries.Key("a")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute+time.Minute/5)

	require.NoError(t, entries.Delete(c, "a"))
	_, err = entries.Get(c, "a")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

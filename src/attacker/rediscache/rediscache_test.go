package rediscache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts...)
}

func TestGet_MissThenSetRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	_, hit, err := cache.Get("sc-001", 0, "phish_sent", "hash-a", "none")
	require.NoError(t, err)
	assert.False(t, hit)

	decision := map[string]any{"action_type": "reuse_credentials"}
	require.NoError(t, cache.Set("sc-001", 0, "phish_sent", "hash-a", "none", decision, "gpt-5", 0.4))

	got, hit, err := cache.Get("sc-001", 0, "phish_sent", "hash-a", "none")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "reuse_credentials", got["action_type"])
}

func TestKeyPrefix_IsolatesDistinctCaches(t *testing.T) {
	server := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { clientA.Close(); clientB.Close() })

	cacheA := New(clientA, WithKeyPrefix("a:"))
	cacheB := New(clientB, WithKeyPrefix("b:"))

	require.NoError(t, cacheA.Set("sc-001", 0, "phish_sent", "hash-a", "none", map[string]any{"action_type": "no_op"}, "gpt-5", 0.4))

	_, hit, err := cacheB.Get("sc-001", 0, "phish_sent", "hash-a", "none")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestWithTTL_ExpiresEntry(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := New(client, WithTTL(time.Minute))

	require.NoError(t, cache.Set("sc-001", 0, "phish_sent", "hash-a", "none", map[string]any{"action_type": "no_op"}, "gpt-5", 0.4))
	server.FastForward(2 * time.Minute)

	_, hit, err := cache.Get("sc-001", 0, "phish_sent", "hash-a", "none")
	require.NoError(t, err)
	assert.False(t, hit)
}

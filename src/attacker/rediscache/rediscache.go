// Package rediscache is an alternate ReplayCache backend for
// deployments that already run Redis for other shared state and would
// rather not manage a second SQLite file per worker.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a Redis-backed attacker.ReplayCache. Entries never expire by
// default; set TTL to bound how long a record/replay pair stays valid.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL sets an expiration on every cache entry. Zero (the default)
// means entries never expire.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithKeyPrefix overrides the default "irsim:attacker:" key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New wraps an existing redis.Client as a ReplayCache.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: "irsim:attacker:"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(scenarioID string, step int, attackerState, agentActionHash, attackerContextHash string) string {
	return fmt.Sprintf("%s%s:%d:%s:%s:%s", c.prefix, scenarioID, step, attackerState, agentActionHash, attackerContextHash)
}

// Get returns the cached decision for the given key, or (nil, false) on
// a cache miss.
func (c *Cache) Get(scenarioID string, step int, attackerState, agentActionHash, attackerContextHash string) (map[string]any, bool, error) {
	ctx := context.Background()
	raw, err := c.client.Get(ctx, c.key(scenarioID, step, attackerState, agentActionHash, attackerContextHash)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rediscache: get: %w", err)
	}
	var decision map[string]any
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, false, fmt.Errorf("rediscache: decode cached decision: %w", err)
	}
	return decision, true, nil
}

// Set records the decision reached for the given key.
func (c *Cache) Set(scenarioID string, step int, attackerState, agentActionHash, attackerContextHash string, decisionJSON map[string]any, model string, temperature float64) error {
	encoded, err := json.Marshal(decisionJSON)
	if err != nil {
		return err
	}
	ctx := context.Background()
	key := c.key(scenarioID, step, attackerState, agentActionHash, attackerContextHash)
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

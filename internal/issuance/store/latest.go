package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"proofbridge/pkg/platform/sentinel"
)

// InMemoryLatestCache holds the latest credential body per holder.
type InMemoryLatestCache struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage
}

func NewInMemoryLatestCache() *InMemoryLatestCache {
	return &InMemoryLatestCache{entries: make(map[string]json.RawMessage)}
}

// Put overwrites the holder's entry.
func (c *InMemoryLatestCache) Put(_ context.Context, holder string, body json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[LatestKey(holder)] = append(json.RawMessage(nil), body...)
	return nil
}

func (c *InMemoryLatestCache) Get(_ context.Context, holder string) (json.RawMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.entries[LatestKey(holder)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append(json.RawMessage(nil), body...), nil
}

// RedisLatestCache keeps the latest credential body per holder in Redis.
// A zero ttl keeps entries until overwritten.
type RedisLatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLatestCache(client *redis.Client, ttl time.Duration) *RedisLatestCache {
	return &RedisLatestCache{client: client, ttl: ttl}
}

func (c *RedisLatestCache) Put(ctx context.Context, holder string, body json.RawMessage) error {
	if err := c.client.Set(ctx, LatestKey(holder), []byte(body), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache latest credential: %w", err)
	}
	return nil
}

func (c *RedisLatestCache) Get(ctx context.Context, holder string) (json.RawMessage, error) {
	raw, err := c.client.Get(ctx, LatestKey(holder)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load latest credential: %w", err)
	}
	return raw, nil
}

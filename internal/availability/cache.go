package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache briefly stores computed slot lists. Entries are scoped by a
// per-workspace generation so Invalidate drops all of them at once.
type Cache interface {
	Get(ctx context.Context, workspaceID, key string) ([]Slot, bool, error)
	Set(ctx context.Context, workspaceID, key string, slots []Slot, ttl time.Duration) error
	Invalidate(ctx context.Context, workspaceID string) error
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	redis *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{redis: client}
}

func (c *RedisCache) genKey(workspaceID string) string {
	return fmt.Sprintf("availability:gen:%s", workspaceID)
}

func (c *RedisCache) generation(ctx context.Context, workspaceID string) (int64, error) {
	gen, err := c.redis.Get(ctx, c.genKey(workspaceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("availability: get cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) slotKey(workspaceID string, gen int64, key string) string {
	return fmt.Sprintf("availability:slots:%s:%d:%s", workspaceID, gen, key)
}

func (c *RedisCache) Get(ctx context.Context, workspaceID, key string) ([]Slot, bool, error) {
	gen, err := c.generation(ctx, workspaceID)
	if err != nil {
		return nil, false, err
	}
	data, err := c.redis.Get(ctx, c.slotKey(workspaceID, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability: get cached slots: %w", err)
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, fmt.Errorf("availability: unmarshal cached slots: %w", err)
	}
	return slots, true, nil
}

func (c *RedisCache) Set(ctx context.Context, workspaceID, key string, slots []Slot, ttl time.Duration) error {
	gen, err := c.generation(ctx, workspaceID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability: marshal slots: %w", err)
	}
	if err := c.redis.Set(ctx, c.slotKey(workspaceID, gen, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache slots: %w", err)
	}
	return nil
}

// Invalidate bumps the workspace generation; old entries age out via TTL.
func (c *RedisCache) Invalidate(ctx context.Context, workspaceID string) error {
	if err := c.redis.Incr(ctx, c.genKey(workspaceID)).Err(); err != nil {
		return fmt.Errorf("availability: invalidate cache: %w", err)
	}
	return nil
}

package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists one Config per workspace.
type Store interface {
	// Get returns the saved config, or DefaultConfig when none was saved.
	Get(ctx context.Context, workspaceID string) (*Config, error)
	// Save validates and replaces the whole config.
	Save(ctx context.Context, cfg *Config) error
}

// RedisStore keeps configs as JSON documents in Redis.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed config store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client, now: time.Now}
}

func (s *RedisStore) key(workspaceID string) string {
	return fmt.Sprintf("scheduling:config:%s", workspaceID)
}

func (s *RedisStore) Get(ctx context.Context, workspaceID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(workspaceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(workspaceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("scheduling: unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (s *RedisStore) Save(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("scheduling: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.WorkspaceID), data, 0).Err(); err != nil {
		return fmt.Errorf("scheduling: set config: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*Config
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]*Config), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, workspaceID string) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.configs[workspaceID]; ok {
		return cfg.Clone(), nil
	}
	return DefaultConfig(workspaceID), nil
}

func (s *MemoryStore) Save(_ context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = s.now().UTC()
	s.mu.Lock()
	s.configs[cfg.WorkspaceID] = cfg.Clone()
	s.mu.Unlock()
	return nil
}

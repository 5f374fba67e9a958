package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long stores keep a negotiation after its last
// change. It is storage cleanup only; the machine never expires a negotiation.
const DefaultRetention = 30 * 24 * time.Hour

// RedisStore keeps negotiations as JSON documents. Save uses WATCH/MULTI so
// concurrent writers cannot overwrite each other.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if client == nil {
		panic("booking: redis client required")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{redis: client, retention: retention}
}

func (s *RedisStore) key(workspaceID, id string) string {
	return fmt.Sprintf("booking:negotiation:%s:%s", workspaceID, id)
}

func (s *RedisStore) Create(ctx context.Context, n *Negotiation) error {
	n.Version = 1
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("booking: marshal negotiation: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, s.key(n.WorkspaceID, n.ID), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("booking: create negotiation: %w", err)
	}
	if !ok {
		return ErrVersionConflict
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, workspaceID, id string) (*Negotiation, error) {
	data, err := s.redis.Get(ctx, s.key(workspaceID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: get negotiation: %w", err)
	}
	return decodeNegotiation(data)
}

func (s *RedisStore) Save(ctx context.Context, n *Negotiation, expectedVersion int64) error {
	key := s.key(n.WorkspaceID, n.ID)
	updated := n.clone()
	updated.Version = expectedVersion + 1
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("booking: marshal negotiation: %w", err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeNegotiation(raw)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.retention)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		n.Version = updated.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrVersionConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("booking: save negotiation: %w", err)
	}
}

func decodeNegotiation(data []byte) (*Negotiation, error) {
	var n Negotiation
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("booking: unmarshal negotiation: %w", err)
	}
	return &n, nil
}

package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"training-progress-service/internal/domain"
)

// ProgressStore keeps learner progress in Redis, one hash per learner:
// HSET progress:{learnerID} {key} {json}
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) Load(ctx context.Context, learnerID, key string) ([]byte, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(learnerID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return raw, nil
}

func (s *ProgressStore) Save(ctx context.Context, learnerID, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.hashKey(learnerID), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (s *ProgressStore) hashKey(learnerID string) string {
	return "progress:" + learnerID
}

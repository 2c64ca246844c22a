package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore keeps replayable responses and in-flight markers for
// Idempotency-Key requests.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

func idempotencyLockKey(key string) string {
	return "idempotency:lock:" + key
}

// GetResponse returns the stored response for key, or nil on a miss.
func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveResponse stores a response for replay.
func (s *IdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKey(key), data, ttl).Err()
}

// Reserve marks key as in flight. It returns false if another request
// already holds it.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyLockKey(key), "1", ttl).Result()
}

// Release clears the in-flight marker.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyLockKey(key)).Err()
}

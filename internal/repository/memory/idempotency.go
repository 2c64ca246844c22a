package memory

import (
	"context"
	"sync"
	"time"

	"checkout/internal/redis"
)

// IdempotencyStore is an in-process Idempotency-Key store used when Redis
// is disabled.
type IdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]expiring
	inFlight  map[string]time.Time
	now       func() time.Time
}

type expiring struct {
	data    []byte
	expires time.Time
}

var _ redis.IdempotencyStoreInterface = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		responses: make(map[string]expiring),
		inFlight:  make(map[string]time.Time),
		now:       time.Now,
	}
}

func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.responses[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(r.expires) {
		delete(s.responses, key)
		return nil, nil
	}
	return append([]byte(nil), r.data...), nil
}

func (s *IdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses[key] = expiring{data: append([]byte(nil), data...), expires: s.now().Add(ttl)}
	return nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.inFlight[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.inFlight[key] = now.Add(ttl)
	return true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	return nil
}

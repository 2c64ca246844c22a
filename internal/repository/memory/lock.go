package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout/internal/redis"
)

// LockStore is an in-process per-payment lock with the same contract as the
// Redis lock store.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

type heldLock struct {
	token   string
	expires time.Time
}

var _ redis.LockStoreInterface = (*LockStore)(nil)

// NewLockStore creates an empty lock store.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]heldLock), now: time.Now}
}

func (s *LockStore) AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, ok := s.locks[paymentID]; ok && now.Before(l.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[paymentID] = heldLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (s *LockStore) ReleasePaymentLock(ctx context.Context, paymentID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[paymentID]; ok && l.token == token {
		delete(s.locks, paymentID)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still holds the caller's token,
// so a holder whose TTL expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles per-payment locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func paymentLockKey(paymentID string) string {
	return fmt.Sprintf("lock:payment:%s", paymentID)
}

// AcquirePaymentLock attempts to acquire the transition lock for a payment.
func (s *LockStore) AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, paymentLockKey(paymentID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleasePaymentLock releases the lock for the given payment if token owns it.
func (s *LockStore) ReleasePaymentLock(ctx context.Context, paymentID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{paymentLockKey(paymentID)}, token).Err()
}

package redis

import (
	"context"
	"time"

	"checkout/internal/domain"
)

// LockStoreInterface defines the interface for per-payment locking.
type LockStoreInterface interface {
	// AcquirePaymentLock returns a release token when the lock was taken, or
	// ok=false if another caller holds it.
	AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (token string, ok bool, err error)

	// ReleasePaymentLock releases the lock only if token still owns it.
	ReleasePaymentLock(ctx context.Context, paymentID, token string) error
}

// CacheStoreInterface defines the interface for the payment read cache.
type CacheStoreInterface interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	SetPayment(ctx context.Context, payment *domain.Payment) error
	InvalidatePayment(ctx context.Context, paymentID string) error
}

// IdempotencyStoreInterface defines the interface for Idempotency-Key storage.
type IdempotencyStoreInterface interface {
	// GetResponse returns nil, nil when nothing is stored for key.
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface        = (*LockStore)(nil)
	_ CacheStoreInterface       = (*CacheStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)

package repository

import (
	"context"

	"checkout/internal/domain"
)

// AttemptRepository records protocol exchanges for audit and metrics.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.Attempt) error

	// ListByPaymentID returns a payment's attempts, oldest first.
	ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.Attempt, error)

	// List returns every attempt.
	List(ctx context.Context) ([]*domain.Attempt, error)
}

package repository

import (
	"context"
	"time"

	"checkout/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// List returns all payments, newest first.
	List(ctx context.Context) ([]*domain.Payment, error)

	// ListStale returns payments in one of statuses created before the cutoff.
	ListStale(ctx context.Context, statuses []domain.PaymentStatus, before time.Time) ([]*domain.Payment, error)

	// Transition writes the payment's status and the fields set alongside it,
	// but only if the stored status still equals expected. A lost race
	// returns ErrStaleStatus.
	Transition(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error
}

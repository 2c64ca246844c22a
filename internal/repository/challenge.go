package repository

import (
	"context"

	"checkout/internal/domain"
)

// ChallengeRepository defines the persistence operations for step-up challenges.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *domain.Challenge) error

	// GetLatestByPaymentID returns the most recent challenge issued for a payment.
	GetLatestByPaymentID(ctx context.Context, paymentID string) (*domain.Challenge, error)

	// Update writes the challenge's status, attempts and verification time.
	Update(ctx context.Context, challenge *domain.Challenge) error
}

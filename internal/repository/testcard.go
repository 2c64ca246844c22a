package repository

import (
	"context"

	"checkout/internal/domain"
)

// TestCardRepository stores the simulated issuer catalogue.
type TestCardRepository interface {
	// Upsert inserts or replaces a card keyed by its number.
	Upsert(ctx context.Context, card *domain.TestCard) error

	GetByNumber(ctx context.Context, number string) (*domain.TestCard, error)

	// GetByBIN returns the first card whose number starts with bin.
	GetByBIN(ctx context.Context, bin string) (*domain.TestCard, error)

	List(ctx context.Context) ([]*domain.TestCard, error)
}

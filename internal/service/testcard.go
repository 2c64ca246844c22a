package service

import (
	"context"
	"fmt"
	"log"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// TestCardService exposes the simulated issuer catalogue.
type TestCardService struct {
	repo repository.TestCardRepository
}

// NewTestCardService creates a new TestCardService.
func NewTestCardService(repo repository.TestCardRepository) *TestCardService {
	return &TestCardService{repo: repo}
}

// Seed upserts the given cards into the catalogue.
func (s *TestCardService) Seed(ctx context.Context, cards []*domain.TestCard) error {
	for _, card := range cards {
		if err := s.repo.Upsert(ctx, card); err != nil {
			return fmt.Errorf("seed test card %s: %w", card.Masked(), err)
		}
	}
	log.Printf("Seeded %d test cards", len(cards))
	return nil
}

// List returns the catalogue.
func (s *TestCardService) List(ctx context.Context) ([]*domain.TestCard, error) {
	return s.repo.List(ctx)
}

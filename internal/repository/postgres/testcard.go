package postgres

import (
	"context"
	"database/sql"
	"errors"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const testCardColumns = `card_number, card_holder, expiry_month, expiry_year, cvv,
	bank_name, card_brand, commission_rate, should_fail, fail_reason`

// TestCardRepository is a PostgreSQL implementation of repository.TestCardRepository.
type TestCardRepository struct {
	q Querier
}

// NewTestCardRepository creates a new PostgreSQL test card repository.
func NewTestCardRepository(db *sql.DB) *TestCardRepository {
	return &TestCardRepository{q: db}
}

// Upsert inserts a card or replaces the stored one with the same number.
func (r *TestCardRepository) Upsert(ctx context.Context, c *domain.TestCard) error {
	query := `
		INSERT INTO test_cards (` + testCardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (card_number) DO UPDATE SET
			card_holder = EXCLUDED.card_holder,
			expiry_month = EXCLUDED.expiry_month,
			expiry_year = EXCLUDED.expiry_year,
			cvv = EXCLUDED.cvv,
			bank_name = EXCLUDED.bank_name,
			card_brand = EXCLUDED.card_brand,
			commission_rate = EXCLUDED.commission_rate,
			should_fail = EXCLUDED.should_fail,
			fail_reason = EXCLUDED.fail_reason
	`

	_, err := r.q.ExecContext(ctx, query,
		c.Number,
		c.Holder,
		c.ExpiryMonth,
		c.ExpiryYear,
		c.CVV,
		c.BankName,
		c.Brand,
		c.CommissionRate,
		c.ShouldFail,
		c.FailReason,
	)

	return err
}

// GetByNumber retrieves a card by its full number.
func (r *TestCardRepository) GetByNumber(ctx context.Context, number string) (*domain.TestCard, error) {
	query := `SELECT ` + testCardColumns + ` FROM test_cards WHERE card_number = $1`

	return r.get(ctx, query, number)
}

// GetByBIN retrieves the first card whose number starts with bin.
func (r *TestCardRepository) GetByBIN(ctx context.Context, bin string) (*domain.TestCard, error) {
	query := `SELECT ` + testCardColumns + ` FROM test_cards
		WHERE card_number LIKE $1 || '%' ORDER BY position LIMIT 1`

	return r.get(ctx, query, bin)
}

// List returns the catalogue in insertion order.
func (r *TestCardRepository) List(ctx context.Context) ([]*domain.TestCard, error) {
	query := `SELECT ` + testCardColumns + ` FROM test_cards ORDER BY position`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*domain.TestCard
	for rows.Next() {
		c, err := scanTestCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

func (r *TestCardRepository) get(ctx context.Context, query string, arg string) (*domain.TestCard, error) {
	c, err := scanTestCard(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanTestCard(row rowScanner) (*domain.TestCard, error) {
	var c domain.TestCard
	err := row.Scan(
		&c.Number,
		&c.Holder,
		&c.ExpiryMonth,
		&c.ExpiryYear,
		&c.CVV,
		&c.BankName,
		&c.Brand,
		&c.CommissionRate,
		&c.ShouldFail,
		&c.FailReason,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

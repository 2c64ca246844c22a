package postgres

import (
	"context"
	"database/sql"
	"errors"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// ChallengeRepository is a PostgreSQL implementation of repository.ChallengeRepository.
type ChallengeRepository struct {
	q    Querier
	lock bool
}

// NewChallengeRepository creates a new PostgreSQL challenge repository.
func NewChallengeRepository(db *sql.DB) *ChallengeRepository {
	return &ChallengeRepository{q: db}
}

// NewChallengeRepositoryWithTx creates a challenge repository using a transaction.
func NewChallengeRepositoryWithTx(tx *sql.Tx) *ChallengeRepository {
	return &ChallengeRepository{q: tx, lock: true}
}

// Create persists a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, c *domain.Challenge) error {
	query := `
		INSERT INTO challenges (id, payment_id, bank_name, code, status, attempts, expires_at, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.PaymentID,
		c.BankName,
		c.Code,
		c.Status,
		c.Attempts,
		c.ExpiresAt,
		nullTime(c.VerifiedAt),
		c.CreatedAt,
	)

	return err
}

// latestChallengeQuery selects the newest challenge of a payment. Inside a
// transaction the row stays locked until commit so concurrent verifications
// cannot both spend the same attempt.
func latestChallengeQuery(lock bool) string {
	query := `
		SELECT id, payment_id, bank_name, code, status, attempts, expires_at, verified_at, created_at
		FROM challenges WHERE payment_id = $1
		ORDER BY created_at DESC LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	return query
}

// GetLatestByPaymentID retrieves the most recent challenge for a payment.
func (r *ChallengeRepository) GetLatestByPaymentID(ctx context.Context, paymentID string) (*domain.Challenge, error) {
	query := latestChallengeQuery(r.lock)

	var c domain.Challenge
	var verifiedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, paymentID).Scan(
		&c.ID,
		&c.PaymentID,
		&c.BankName,
		&c.Code,
		&c.Status,
		&c.Attempts,
		&c.ExpiresAt,
		&verifiedAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if verifiedAt.Valid {
		c.VerifiedAt = verifiedAt.Time
	}

	return &c, nil
}

// Update writes the challenge's mutable fields.
func (r *ChallengeRepository) Update(ctx context.Context, c *domain.Challenge) error {
	query := `UPDATE challenges SET status = $2, attempts = $3, verified_at = $4 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, c.ID, c.Status, c.Attempts, nullTime(c.VerifiedAt))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"checkout/internal/domain"
)

// AttemptRepository is a PostgreSQL implementation of repository.AttemptRepository.
type AttemptRepository struct {
	q Querier
}

// NewAttemptRepository creates a new PostgreSQL attempt repository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{q: db}
}

// NewAttemptRepositoryWithTx creates an attempt repository using a transaction.
func NewAttemptRepositoryWithTx(tx *sql.Tx) *AttemptRepository {
	return &AttemptRepository{q: tx}
}

// Create persists a new attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *domain.Attempt) error {
	query := `
		INSERT INTO payment_attempts (id, payment_id, provider, operation, status, error_code, message, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		a.ID,
		a.PaymentID,
		a.Provider,
		a.Operation,
		a.Status,
		a.ErrorCode,
		a.Message,
		a.LatencyMs,
		a.CreatedAt,
	)

	return err
}

// ListByPaymentID returns a payment's attempts, oldest first.
func (r *AttemptRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.Attempt, error) {
	query := `
		SELECT id, payment_id, provider, operation, status, error_code, message, latency_ms, created_at
		FROM payment_attempts WHERE payment_id = $1
		ORDER BY created_at
	`

	return r.query(ctx, query, paymentID)
}

// List returns every attempt.
func (r *AttemptRepository) List(ctx context.Context) ([]*domain.Attempt, error) {
	query := `
		SELECT id, payment_id, provider, operation, status, error_code, message, latency_ms, created_at
		FROM payment_attempts
	`

	return r.query(ctx, query)
}

func (r *AttemptRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Attempt, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(
			&a.ID,
			&a.PaymentID,
			&a.Provider,
			&a.Operation,
			&a.Status,
			&a.ErrorCode,
			&a.Message,
			&a.LatencyMs,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

package postgres

import (
	"context"
	"database/sql"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const apiLogColumns = `id, correlation_id, payment_id, method, endpoint, request_body,
	response_status, response_body, latency_ms, created_at`

// APILogRepository is a PostgreSQL implementation of repository.APILogRepository.
type APILogRepository struct {
	q Querier
}

// NewAPILogRepository creates a new PostgreSQL API log repository.
func NewAPILogRepository(db *sql.DB) *APILogRepository {
	return &APILogRepository{q: db}
}

// Create persists a captured exchange.
func (r *APILogRepository) Create(ctx context.Context, l *domain.APILog) error {
	query := `INSERT INTO api_logs (` + apiLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.q.ExecContext(ctx, query,
		l.ID,
		l.CorrelationID,
		l.PaymentID,
		l.Method,
		l.Endpoint,
		l.RequestBody,
		l.ResponseStatus,
		l.ResponseBody,
		l.LatencyMs,
		l.CreatedAt,
	)

	return err
}

// Recent returns at most limit logs, newest first.
func (r *APILogRepository) Recent(ctx context.Context, limit int) ([]*domain.APILog, error) {
	query := `SELECT ` + apiLogColumns + ` FROM api_logs ORDER BY created_at DESC LIMIT $1`

	return r.query(ctx, query, limit)
}

// ListByPaymentID returns the logs joined to a payment, newest first.
func (r *APILogRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.APILog, error) {
	query := `SELECT ` + apiLogColumns + ` FROM api_logs WHERE payment_id = $1 ORDER BY created_at DESC`

	return r.query(ctx, query, paymentID)
}

// Samples returns the status and latency of every stored log.
func (r *APILogRepository) Samples(ctx context.Context) ([]repository.LogSample, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT response_status, latency_ms FROM api_logs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []repository.LogSample
	for rows.Next() {
		var s repository.LogSample
		if err := rows.Scan(&s.ResponseStatus, &s.LatencyMs); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

func (r *APILogRepository) query(ctx context.Context, query string, args ...any) ([]*domain.APILog, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.APILog
	for rows.Next() {
		var l domain.APILog
		if err := rows.Scan(
			&l.ID,
			&l.CorrelationID,
			&l.PaymentID,
			&l.Method,
			&l.Endpoint,
			&l.RequestBody,
			&l.ResponseStatus,
			&l.ResponseBody,
			&l.LatencyMs,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

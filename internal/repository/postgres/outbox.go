package postgres

import (
	"context"
	"database/sql"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// OutboxRepository is a PostgreSQL implementation of repository.OutboxRepository.
type OutboxRepository struct {
	q    Querier
	lock bool
}

// NewOutboxRepository creates a new PostgreSQL outbox repository.
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{q: db}
}

// NewOutboxRepositoryWithTx creates an outbox repository using a transaction.
// Pending events it lists stay locked until the transaction ends.
func NewOutboxRepositoryWithTx(tx *sql.Tx) *OutboxRepository {
	return &OutboxRepository{q: tx, lock: true}
}

// Create persists a new event.
func (r *OutboxRepository) Create(ctx context.Context, e *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, last_error, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		e.ID,
		e.AggregateType,
		e.AggregateID,
		e.EventType,
		e.Payload,
		e.Status,
		e.RetryCount,
		e.LastError,
		e.CreatedAt,
		nullTime(e.ProcessedAt),
	)

	return err
}

func pendingOutboxQuery(lock bool) string {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, last_error, created_at, processed_at
		FROM outbox_events
		WHERE status = 'NEW' AND retry_count < $1
		ORDER BY created_at
		LIMIT $2`
	if lock {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	return query
}

// ListPending returns NEW events below the retry limit, oldest first.
func (r *OutboxRepository) ListPending(ctx context.Context, maxRetries, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.q.QueryContext(ctx, pendingOutboxQuery(r.lock), maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		var processedAt sql.NullTime
		if err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&e.Status,
			&e.RetryCount,
			&e.LastError,
			&e.CreatedAt,
			&processedAt,
		); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			e.ProcessedAt = processedAt.Time
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// Update writes the event's processing state.
func (r *OutboxRepository) Update(ctx context.Context, e *domain.OutboxEvent) error {
	query := `UPDATE outbox_events SET status = $2, retry_count = $3, last_error = $4, processed_at = $5 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, e.ID, e.Status, e.RetryCount, e.LastError, nullTime(e.ProcessedAt))
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

package postgres

import (
	"context"
	"database/sql"
	"time"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const webhookColumns = `
	id, event_id, event_type, target_url, payload, status, retry_count,
	response_code, response_body, next_retry_at, last_attempt_at, created_at`

// WebhookRepository is a PostgreSQL implementation of repository.WebhookRepository.
type WebhookRepository struct {
	q Querier
}

// NewWebhookRepository creates a new PostgreSQL webhook delivery repository.
func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{q: db}
}

// Create persists a new delivery.
func (r *WebhookRepository) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.EventID,
		d.EventType,
		d.TargetURL,
		d.Payload,
		d.Status,
		d.RetryCount,
		d.ResponseCode,
		d.ResponseBody,
		d.NextRetryAt,
		nullTime(d.LastAttemptAt),
		d.CreatedAt,
	)

	return err
}

// ClaimDue leases due deliveries in a single statement. Rows another
// dispatcher is claiming at the same time are skipped.
func (r *WebhookRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.WebhookDelivery, error) {
	query := `
		UPDATE webhook_deliveries SET next_retry_at = $2
		WHERE id IN (
			SELECT id FROM webhook_deliveries
			WHERE status IN ('PENDING', 'FAILED') AND next_retry_at <= $1
			ORDER BY next_retry_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + webhookColumns

	return r.query(ctx, query, now, now.Add(lease), limit)
}

// Update writes the outcome of a delivery attempt.
func (r *WebhookRepository) Update(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries SET
			status = $2, retry_count = $3, response_code = $4, response_body = $5,
			next_retry_at = $6, last_attempt_at = $7
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.Status,
		d.RetryCount,
		d.ResponseCode,
		d.ResponseBody,
		d.NextRetryAt,
		nullTime(d.LastAttemptAt),
	)
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

// ListByEventID returns the deliveries created for an event.
func (r *WebhookRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.WebhookDelivery, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_deliveries WHERE event_id = $1 ORDER BY created_at`

	return r.query(ctx, query, eventID)
}

func (r *WebhookRepository) query(ctx context.Context, query string, args ...any) ([]*domain.WebhookDelivery, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*domain.WebhookDelivery
	for rows.Next() {
		var d domain.WebhookDelivery
		var lastAttempt sql.NullTime
		if err := rows.Scan(
			&d.ID,
			&d.EventID,
			&d.EventType,
			&d.TargetURL,
			&d.Payload,
			&d.Status,
			&d.RetryCount,
			&d.ResponseCode,
			&d.ResponseBody,
			&d.NextRetryAt,
			&lastAttempt,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastAttempt.Valid {
			d.LastAttemptAt = lastAttempt.Time
		}
		deliveries = append(deliveries, &d)
	}

	return deliveries, rows.Err()
}

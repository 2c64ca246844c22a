package repository

import (
	"context"
	"time"

	"checkout/internal/domain"
)

// OutboxRepository stores events published alongside payment transitions.
type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error

	// ListPending returns up to limit NEW events with fewer than maxRetries
	// failed runs, oldest first. Inside a transaction the rows stay locked
	// and rows locked by another worker are skipped.
	ListPending(ctx context.Context, maxRetries, limit int) ([]*domain.OutboxEvent, error)

	// Update writes status, retry count, last error and processed time.
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// WebhookRepository stores outbound webhook deliveries.
type WebhookRepository interface {
	Create(ctx context.Context, delivery *domain.WebhookDelivery) error

	// ClaimDue returns up to limit deliveries due at now and pushes their
	// next attempt to now+lease, so a concurrent dispatcher does not pick
	// them up while they are in flight.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.WebhookDelivery, error)

	// Update writes the outcome of an attempt.
	Update(ctx context.Context, delivery *domain.WebhookDelivery) error

	// ListByEventID returns the deliveries created for an event.
	ListByEventID(ctx context.Context, eventID string) ([]*domain.WebhookDelivery, error)
}

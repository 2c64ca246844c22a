package repository

import (
	"context"

	"checkout/internal/domain"
)

// LogSample is the part of an API log needed for request statistics.
type LogSample struct {
	ResponseStatus int
	LatencyMs      int64
}

// APILogRepository stores captured request/response exchanges.
type APILogRepository interface {
	Create(ctx context.Context, log *domain.APILog) error

	// Recent returns at most limit logs, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.APILog, error)

	// ListByPaymentID returns the logs joined to a payment, newest first.
	ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.APILog, error)

	// Samples returns the status and latency of every stored log.
	Samples(ctx context.Context) ([]LogSample, error)
}

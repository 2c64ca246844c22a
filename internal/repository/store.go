package repository

import "context"

// Store groups the repositories that take part in payment transitions and
// the events they publish.
type Store interface {
	Orders() OrderRepository
	Payments() PaymentRepository
	Challenges() ChallengeRepository
	Attempts() AttemptRepository
	TestCards() TestCardRepository
	Outbox() OutboxRepository
	Webhooks() WebhookRepository

	// InTx runs fn against a Store whose writes commit together. An error
	// returned by fn rolls the writes back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

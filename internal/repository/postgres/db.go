package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"checkout/internal/repository"
)

//go:embed schema.sql
var schema string

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// EnsureSchema creates the tables the store needs if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store is a PostgreSQL implementation of repository.Store. A Store created
// by InTx is bound to its transaction.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// NewStore creates a store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Orders() repository.OrderRepository {
	if s.tx != nil {
		return NewOrderRepositoryWithTx(s.tx)
	}
	return NewOrderRepository(s.db)
}

func (s *Store) Payments() repository.PaymentRepository {
	if s.tx != nil {
		return NewPaymentRepositoryWithTx(s.tx)
	}
	return NewPaymentRepository(s.db)
}

func (s *Store) Challenges() repository.ChallengeRepository {
	if s.tx != nil {
		return NewChallengeRepositoryWithTx(s.tx)
	}
	return NewChallengeRepository(s.db)
}

func (s *Store) Attempts() repository.AttemptRepository {
	if s.tx != nil {
		return NewAttemptRepositoryWithTx(s.tx)
	}
	return NewAttemptRepository(s.db)
}

func (s *Store) TestCards() repository.TestCardRepository {
	if s.tx != nil {
		return &TestCardRepository{q: s.tx}
	}
	return NewTestCardRepository(s.db)
}

func (s *Store) Outbox() repository.OutboxRepository {
	if s.tx != nil {
		return NewOutboxRepositoryWithTx(s.tx)
	}
	return NewOutboxRepository(s.db)
}

func (s *Store) Webhooks() repository.WebhookRepository {
	if s.tx != nil {
		return &WebhookRepository{q: s.tx}
	}
	return NewWebhookRepository(s.db)
}

// InTx runs fn inside a database transaction. Nested calls reuse the
// enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, product_name, amount, buyer_email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		order.ID,
		order.ProductName,
		order.Amount,
		order.BuyerEmail,
		order.CreatedAt,
	)

	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, product_name, amount, buyer_email, created_at
		FROM orders WHERE id = $1
	`

	var order domain.Order
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.ProductName,
		&order.Amount,
		&order.BuyerEmail,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &order, nil
}

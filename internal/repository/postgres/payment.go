package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const paymentColumns = `
	id, order_id, product_name, buyer_email, amount, currency, status,
	card_bin, card_last_four, provider_name, provider_reference,
	commission_rate, commission_amount, net_amount, refunded_amount,
	created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	rate, commission, net := settlementColumns(payment.Settlement)

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.ProductName,
		payment.BuyerEmail,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CardBIN,
		payment.CardLastFour,
		payment.ProviderName,
		payment.ProviderReference,
		rate,
		commission,
		net,
		payment.RefundedAmount,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// List returns all payments, newest first.
func (r *PaymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC, id DESC`

	return r.query(ctx, query)
}

// ListStale returns payments in one of statuses created before the cutoff.
func (r *PaymentRepository) ListStale(ctx context.Context, statuses []domain.PaymentStatus, before time.Time) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = ANY($1) AND created_at < $2
		ORDER BY created_at DESC`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	return r.query(ctx, query, pq.Array(names), before)
}

// Transition updates the payment only while its stored status equals expected.
func (r *PaymentRepository) Transition(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	query := `
		UPDATE payments SET
			status = $3, card_bin = $4, card_last_four = $5, provider_name = $6,
			provider_reference = $7, commission_rate = $8, commission_amount = $9,
			net_amount = $10, refunded_amount = $11, updated_at = $12
		WHERE id = $1 AND status = $2
	`

	rate, commission, net := settlementColumns(payment.Settlement)

	result, err := r.q.ExecContext(ctx, query,
		payment.ID,
		expected,
		payment.Status,
		payment.CardBIN,
		payment.CardLastFour,
		payment.ProviderName,
		payment.ProviderReference,
		rate,
		commission,
		net,
		payment.RefundedAmount,
		payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, payment.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrStaleStatus
	}

	return nil
}

func (r *PaymentRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var rate, commission, net decimal.NullDecimal

	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.ProductName,
		&payment.BuyerEmail,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.CardBIN,
		&payment.CardLastFour,
		&payment.ProviderName,
		&payment.ProviderReference,
		&rate,
		&commission,
		&net,
		&payment.RefundedAmount,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if commission.Valid {
		payment.Settlement = &domain.Settlement{
			CommissionRate:   rate.Decimal,
			CommissionAmount: commission.Decimal,
			NetAmount:        net.Decimal,
		}
	}

	return &payment, nil
}

func settlementColumns(s *domain.Settlement) (rate, commission, net decimal.NullDecimal) {
	if s == nil {
		return
	}
	return decimal.NewNullDecimal(s.CommissionRate),
		decimal.NewNullDecimal(s.CommissionAmount),
		decimal.NewNullDecimal(s.NetAmount)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

// PaymentCacheTTL bounds how long a projection may be served after a missed
// invalidation.
const PaymentCacheTTL = 30 * time.Second

const paymentCachePrefix = "cache:payment:"

// CacheStore handles payment projection caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// cachedPayment is the JSON shape stored for a payment.
type cachedPayment struct {
	ID                string               `json:"id"`
	OrderID           string               `json:"order_id"`
	ProductName       string               `json:"product_name"`
	BuyerEmail        string               `json:"buyer_email"`
	Amount            decimal.Decimal      `json:"amount"`
	Currency          string               `json:"currency"`
	Status            domain.PaymentStatus `json:"status"`
	CardBIN           string               `json:"card_bin,omitempty"`
	CardLastFour      string               `json:"card_last_four,omitempty"`
	ProviderName      string               `json:"provider_name,omitempty"`
	ProviderReference string               `json:"provider_reference,omitempty"`
	CommissionRate    decimal.NullDecimal  `json:"commission_rate"`
	CommissionAmount  decimal.NullDecimal  `json:"commission_amount"`
	NetAmount         decimal.NullDecimal  `json:"net_amount"`
	RefundedAmount    decimal.Decimal      `json:"refunded_amount"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func toCached(p *domain.Payment) cachedPayment {
	c := cachedPayment{
		ID:                p.ID,
		OrderID:           p.OrderID,
		ProductName:       p.ProductName,
		BuyerEmail:        p.BuyerEmail,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            p.Status,
		CardBIN:           p.CardBIN,
		CardLastFour:      p.CardLastFour,
		ProviderName:      p.ProviderName,
		ProviderReference: p.ProviderReference,
		RefundedAmount:    p.RefundedAmount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if s := p.Settlement; s != nil {
		c.CommissionRate = decimal.NewNullDecimal(s.CommissionRate)
		c.CommissionAmount = decimal.NewNullDecimal(s.CommissionAmount)
		c.NetAmount = decimal.NewNullDecimal(s.NetAmount)
	}
	return c
}

func (c cachedPayment) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:                c.ID,
		OrderID:           c.OrderID,
		ProductName:       c.ProductName,
		BuyerEmail:        c.BuyerEmail,
		Amount:            c.Amount,
		Currency:          c.Currency,
		Status:            c.Status,
		CardBIN:           c.CardBIN,
		CardLastFour:      c.CardLastFour,
		ProviderName:      c.ProviderName,
		ProviderReference: c.ProviderReference,
		RefundedAmount:    c.RefundedAmount,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.CommissionAmount.Valid {
		p.Settlement = &domain.Settlement{
			CommissionRate:   c.CommissionRate.Decimal,
			CommissionAmount: c.CommissionAmount.Decimal,
			NetAmount:        c.NetAmount.Decimal,
		}
	}
	return p
}

// GetPayment retrieves a payment from cache. A miss returns nil, nil.
func (s *CacheStore) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	data, err := s.client.Get(ctx, paymentCachePrefix+paymentID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var c cachedPayment
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c.toDomain(), nil
}

// SetPayment stores a payment in cache.
func (s *CacheStore) SetPayment(ctx context.Context, payment *domain.Payment) error {
	data, err := json.Marshal(toCached(payment))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, paymentCachePrefix+payment.ID, data, PaymentCacheTTL).Err()
}

// InvalidatePayment removes a payment from cache.
func (s *CacheStore) InvalidatePayment(ctx context.Context, paymentID string) error {
	return s.client.Del(ctx, paymentCachePrefix+paymentID).Err()
}

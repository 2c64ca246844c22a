package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"

	"checkout/internal/domain"
	"checkout/internal/redis"
	"checkout/internal/repository"
	"checkout/internal/validation"
)

// Policy holds the simulated issuer rules.
type Policy struct {
	ChallengeCode     string
	ChallengeTTL      time.Duration
	MaxAttempts       int
	DefaultCommission decimal.Decimal
	LockTTL           time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		ChallengeCode:     "111111",
		ChallengeTTL:      5 * time.Minute,
		MaxAttempts:       3,
		DefaultCommission: decimal.RequireFromString("1.99"),
		LockTTL:           10 * time.Second,
	}
}

// PaymentService drives payments through their state machine. Every
// transition runs under a per-payment lock and inside a store transaction,
// and is written with a compare-and-swap on the previous status.
type PaymentService struct {
	store         repository.Store
	locks         redis.LockStoreInterface
	cache         redis.CacheStoreInterface
	notifications *NotificationService
	receipts      *ReceiptService
	nrApp         *newrelic.Application
	policy        Policy
	now           func() time.Time
}

// NewPaymentService creates a new PaymentService. cache, notifications and
// nrApp may be nil.
func NewPaymentService(
	store repository.Store,
	locks redis.LockStoreInterface,
	cache redis.CacheStoreInterface,
	notifications *NotificationService,
	nrApp *newrelic.Application,
	policy Policy,
) *PaymentService {
	return &PaymentService{
		store:         store,
		locks:         locks,
		cache:         cache,
		notifications: notifications,
		receipts:      NewReceiptService(notifications),
		nrApp:         nrApp,
		policy:        policy,
		now:           time.Now,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	ProductName string
	Amount      decimal.Decimal
	BuyerEmail  string
}

// CreateOrderResult contains the created order and its payment.
type CreateOrderResult struct {
	Order   *domain.Order
	Payment *domain.Payment
}

// CreateOrder creates an order and a payment in CREATED status.
func (s *PaymentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	req.ProductName = strings.TrimSpace(req.ProductName)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)
	if err := validation.CheckOrder(req.ProductName, req.Amount, req.BuyerEmail); err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:          newOrderID(),
		ProductName: req.ProductName,
		Amount:      req.Amount,
		BuyerEmail:  req.BuyerEmail,
		CreatedAt:   now,
	}
	payment := &domain.Payment{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		ProductName: order.ProductName,
		BuyerEmail:  order.BuyerEmail,
		Amount:      order.Amount,
		Currency:    domain.DefaultCurrency,
		Status:      domain.PaymentStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		return publishPaymentEvent(ctx, tx, payment, "", "", now)
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	log.Printf("Order created: order=%s payment=%s amount=%s", order.ID, payment.ID, payment.Amount.StringFixed(2))
	s.recordTransition(payment, "", "order created")

	return &CreateOrderResult{Order: order, Payment: payment}, nil
}

// AuthorizeRequest contains the card data submitted for a payment.
type AuthorizeRequest struct {
	PaymentID   string
	CardNumber  string
	CardHolder  string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// AuthorizeResult is the outcome of an authorization. The payment is
// AUTHORIZED when a challenge is required and FAILED when declined.
type AuthorizeResult struct {
	Payment  *domain.Payment
	BankName string // Set when a challenge is required.
	Message  string // Decline reason.
}

// ChallengeRequired reports whether the buyer must answer a challenge.
func (r *AuthorizeResult) ChallengeRequired() bool {
	return r.Payment.Status == domain.PaymentStatusAuthorized
}

// Authorize runs the card against the simulated issuer. Structurally valid
// cards always end in exactly one of challenge-required or declined.
func (s *PaymentService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if req.PaymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	req.CardNumber = validation.NormalizeCardNumber(req.CardNumber)
	req.CardHolder = strings.TrimSpace(req.CardHolder)
	if err := validation.CheckCard(req.CardNumber, req.CardHolder, req.ExpiryMonth, req.ExpiryYear, req.CVV); err != nil {
		return nil, err
	}

	start := s.now()
	var result *AuthorizeResult

	err := s.withLock(ctx, req.PaymentID, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			payment, err := tx.Payments().GetByID(ctx, req.PaymentID)
			if err != nil {
				return err
			}
			if payment.Status != domain.PaymentStatusCreated {
				return ErrPaymentNotAuthorizable
			}

			card, reason, err := s.issuerDecision(ctx, tx, req)
			if err != nil {
				return err
			}

			now := s.now()
			payment.CardBIN = req.CardNumber[:6]
			payment.CardLastFour = req.CardNumber[len(req.CardNumber)-4:]
			payment.UpdatedAt = now
			if card != nil {
				payment.ProviderName = card.BankName
			}

			attempt := &domain.Attempt{
				ID:        uuid.New().String(),
				PaymentID: payment.ID,
				Provider:  providerName(payment),
				Operation: domain.OperationAuthorize,
				LatencyMs: now.Sub(start).Milliseconds(),
				CreatedAt: now,
			}

			if reason != "" {
				payment.Status = domain.PaymentStatusFailed
				attempt.Status = domain.AttemptStatusFailure
				attempt.ErrorCode = codeDeclined
				attempt.Message = reason
				result = &AuthorizeResult{Payment: payment, Message: reason}
			} else {
				challenge := &domain.Challenge{
					ID:        uuid.New().String(),
					PaymentID: payment.ID,
					BankName:  card.BankName,
					Code:      s.policy.ChallengeCode,
					Status:    domain.ChallengeStatusPending,
					ExpiresAt: now.Add(s.policy.ChallengeTTL),
					CreatedAt: now,
				}
				if err := tx.Challenges().Create(ctx, challenge); err != nil {
					return err
				}
				payment.Status = domain.PaymentStatusAuthorized
				attempt.Status = domain.AttemptStatusSuccess
				result = &AuthorizeResult{Payment: payment, BankName: card.BankName}
			}

			if err := tx.Payments().Transition(ctx, payment, domain.PaymentStatusCreated); err != nil {
				return err
			}
			if err := publishPaymentEvent(ctx, tx, payment, domain.PaymentStatusCreated, reason, now); err != nil {
				return err
			}
			return tx.Attempts().Create(ctx, attempt)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("authorize payment %s: %w", req.PaymentID, err)
	}

	s.afterTransition(ctx, result.Payment, domain.PaymentStatusCreated, result.Message)
	if result.ChallengeRequired() && s.notifications != nil {
		_ = s.notifications.NotifyChallengeRequired(ctx, result.Payment)
	}

	return result, nil
}

// issuerDecision looks the card up in the catalogue and returns a decline
// reason, or "" when the card is accepted. card is nil for unknown PANs.
func (s *PaymentService) issuerDecision(ctx context.Context, tx repository.Store, req AuthorizeRequest) (*domain.TestCard, string, error) {
	card, err := tx.TestCards().GetByNumber(ctx, req.CardNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "Card not recognized by issuer", nil
	}
	if err != nil {
		return nil, "", err
	}

	switch {
	case card.CVV != req.CVV:
		return card, "Invalid CVV", nil
	case !sameExpiry(card, req.ExpiryMonth, req.ExpiryYear):
		return card, "Invalid expiry date", nil
	case card.ShouldFail:
		return card, card.FailReason, nil
	}
	return card, "", nil
}

// sameExpiry compares expiry dates, accepting two or four digit years.
func sameExpiry(card *domain.TestCard, month, year string) bool {
	m1, err1 := strconv.Atoi(card.ExpiryMonth)
	m2, err2 := strconv.Atoi(month)
	if err1 != nil || err2 != nil || m1 != m2 {
		return false
	}
	return fullYear(card.ExpiryYear) == fullYear(year)
}

func fullYear(year string) string {
	if len(year) == 2 {
		return "20" + year
	}
	return year
}

// VerifyResult is the outcome of a challenge verification.
type VerifyResult struct {
	Payment           *domain.Payment
	Success           bool
	Code              string // Failure code; empty on success.
	Message           string
	RemainingAttempts int
}

// VerifyChallenge checks a one-time code. A match captures the payment; a
// mismatch keeps it pending until the attempt budget is exhausted.
func (s *PaymentService) VerifyChallenge(ctx context.Context, paymentID, code string) (*VerifyResult, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	if err := validation.CheckChallengeCode(code); err != nil {
		return nil, err
	}

	start := s.now()
	var result *VerifyResult

	err := s.withLock(ctx, paymentID, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			payment, err := tx.Payments().GetByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if payment.Status != domain.PaymentStatusAuthorized {
				return ErrPaymentNotAwaitingChallenge
			}

			challenge, err := tx.Challenges().GetLatestByPaymentID(ctx, paymentID)
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPaymentNotAwaitingChallenge
			}
			if err != nil {
				return err
			}
			if challenge.Status != domain.ChallengeStatusPending {
				return ErrPaymentNotAwaitingChallenge
			}

			now := s.now()
			attempt := &domain.Attempt{
				ID:        uuid.New().String(),
				PaymentID: payment.ID,
				Provider:  providerName(payment),
				Operation: domain.OperationChallenge,
				Status:    domain.AttemptStatusFailure,
				LatencyMs: now.Sub(start).Milliseconds(),
				CreatedAt: now,
			}
			payment.UpdatedAt = now

			switch {
			case challenge.IsExpired(now):
				challenge.Status = domain.ChallengeStatusExpired
				payment.Status = domain.PaymentStatusCancelled
				result = &VerifyResult{Payment: payment, Code: CodeExpired, Message: "Verification code expired"}

			case code == challenge.Code:
				challenge.Attempts++
				challenge.Status = domain.ChallengeStatusVerified
				challenge.VerifiedAt = now

				rate, err := s.commissionRate(ctx, tx, payment.CardBIN)
				if err != nil {
					return err
				}
				settlement := domain.Settle(payment.Amount, rate)
				payment.Settlement = &settlement
				payment.ProviderReference = newProviderReference()
				payment.Status = domain.PaymentStatusCaptured
				attempt.Status = domain.AttemptStatusSuccess
				result = &VerifyResult{Payment: payment, Success: true, Message: "Payment captured"}

			default:
				challenge.Attempts++
				remaining := s.policy.MaxAttempts - challenge.Attempts
				if remaining <= 0 {
					challenge.Status = domain.ChallengeStatusBlocked
					payment.Status = domain.PaymentStatusFailed
					result = &VerifyResult{Payment: payment, Code: CodeMaxAttempts, Message: "Maximum verification attempts exceeded"}
				} else {
					result = &VerifyResult{
						Payment:           payment,
						Code:              CodeInvalidOTP,
						Message:           fmt.Sprintf("Invalid verification code, %d attempts remaining", remaining),
						RemainingAttempts: remaining,
					}
				}
			}
			attempt.ErrorCode = result.Code
			attempt.Message = result.Message

			if err := tx.Challenges().Update(ctx, challenge); err != nil {
				return err
			}
			if payment.Status != domain.PaymentStatusAuthorized {
				if err := tx.Payments().Transition(ctx, payment, domain.PaymentStatusAuthorized); err != nil {
					return err
				}
				if err := publishPaymentEvent(ctx, tx, payment, domain.PaymentStatusAuthorized, result.Message, now); err != nil {
					return err
				}
			}
			return tx.Attempts().Create(ctx, attempt)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("verify payment %s: %w", paymentID, err)
	}

	if result.Payment.Status != domain.PaymentStatusAuthorized {
		s.afterTransition(ctx, result.Payment, domain.PaymentStatusAuthorized, result.Message)
	}

	return result, nil
}

func (s *PaymentService) commissionRate(ctx context.Context, tx repository.Store, bin string) (decimal.Decimal, error) {
	card, err := tx.TestCards().GetByBIN(ctx, bin)
	if errors.Is(err, repository.ErrNotFound) {
		return s.policy.DefaultCommission, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return card.CommissionRate, nil
}

// Cancel abandons a payment that has not reached a terminal status.
func (s *PaymentService) Cancel(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	if reason == "" {
		reason = "cancelled by buyer"
	}

	var payment *domain.Payment
	var previous domain.PaymentStatus

	err := s.withLock(ctx, paymentID, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			var err error
			payment, err = tx.Payments().GetByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(payment.Status, domain.PaymentStatusCancelled) {
				return ErrPaymentNotCancellable
			}

			if payment.Status == domain.PaymentStatusAuthorized {
				challenge, err := tx.Challenges().GetLatestByPaymentID(ctx, paymentID)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
				if challenge != nil && challenge.Status == domain.ChallengeStatusPending {
					challenge.Status = domain.ChallengeStatusExpired
					if err := tx.Challenges().Update(ctx, challenge); err != nil {
						return err
					}
				}
			}

			now := s.now()
			previous = payment.Status
			payment.Status = domain.PaymentStatusCancelled
			payment.UpdatedAt = now
			if err := tx.Payments().Transition(ctx, payment, previous); err != nil {
				return err
			}
			if err := publishPaymentEvent(ctx, tx, payment, previous, reason, now); err != nil {
				return err
			}

			return tx.Attempts().Create(ctx, &domain.Attempt{
				ID:        uuid.New().String(),
				PaymentID: payment.ID,
				Provider:  providerName(payment),
				Operation: domain.OperationCancel,
				Status:    domain.AttemptStatusSuccess,
				ErrorCode: codeCancelled,
				Message:   reason,
				CreatedAt: now,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cancel payment %s: %w", paymentID, err)
	}

	s.afterTransition(ctx, payment, previous, reason)

	return payment, nil
}

// RefundRequest contains the parameters for a refund. A nil Amount refunds
// everything not yet refunded.
type RefundRequest struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
}

// Refund returns money on a captured payment. The payment ends REFUNDED once
// the whole amount is back and PARTIALLY_REFUNDED before that.
func (s *PaymentService) Refund(ctx context.Context, req RefundRequest) (*domain.Payment, error) {
	if req.PaymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	if err := validation.CheckRefund(req.Amount, req.Reason); err != nil {
		return nil, err
	}
	if req.Reason == "" {
		req.Reason = "refund requested"
	}

	var payment *domain.Payment
	var previous domain.PaymentStatus
	var refunded decimal.Decimal

	err := s.withLock(ctx, req.PaymentID, func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			var err error
			payment, err = tx.Payments().GetByID(ctx, req.PaymentID)
			if err != nil {
				return err
			}
			if !payment.IsRefundable() {
				return ErrPaymentNotRefundable
			}

			refunded = payment.Refundable()
			if req.Amount != nil {
				if req.Amount.GreaterThan(refunded) {
					return ErrRefundExceedsAmount
				}
				refunded = *req.Amount
			}

			now := s.now()
			previous = payment.Status
			payment.RefundedAmount = payment.RefundedAmount.Add(refunded)
			payment.Status = domain.PaymentStatusPartiallyRefunded
			if !payment.RefundedAmount.LessThan(payment.Amount) {
				payment.Status = domain.PaymentStatusRefunded
			}
			payment.UpdatedAt = now

			if err := tx.Payments().Transition(ctx, payment, previous); err != nil {
				return err
			}
			if err := publishPaymentEvent(ctx, tx, payment, previous, req.Reason, now); err != nil {
				return err
			}

			return tx.Attempts().Create(ctx, &domain.Attempt{
				ID:        uuid.New().String(),
				PaymentID: payment.ID,
				Provider:  providerName(payment),
				Operation: domain.OperationRefund,
				Status:    domain.AttemptStatusSuccess,
				Message:   fmt.Sprintf("%s: %s %s", req.Reason, refunded.StringFixed(2), payment.Currency),
				CreatedAt: now,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("refund payment %s: %w", req.PaymentID, err)
	}

	s.afterTransition(ctx, payment, previous, req.Reason)
	if s.notifications != nil {
		_ = s.notifications.NotifyPaymentRefunded(ctx, payment, refunded.StringFixed(2))
	}

	return payment, nil
}

// GetPayment retrieves a payment by ID, through the cache when configured.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	if s.cache != nil {
		cached, err := s.cache.GetPayment(ctx, paymentID)
		if err != nil {
			log.Printf("Warning: payment cache read failed: payment=%s err=%v", paymentID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPayment(ctx, payment); err != nil {
			log.Printf("Warning: payment cache write failed: payment=%s err=%v", paymentID, err)
		}
	}

	return payment, nil
}

// PaymentDetail is a payment together with its audit trail.
type PaymentDetail struct {
	Payment  *domain.Payment
	Attempts []*domain.Attempt
}

// GetPaymentDetail retrieves a payment and its attempts.
func (s *PaymentService) GetPaymentDetail(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.store.Attempts().ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	return &PaymentDetail{Payment: payment, Attempts: attempts}, nil
}

// ListAttempts returns a payment's attempts, oldest first.
func (s *PaymentService) ListAttempts(ctx context.Context, paymentID string) ([]*domain.Attempt, error) {
	detail, err := s.GetPaymentDetail(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return detail.Attempts, nil
}

// ListPayments returns all payments, newest first.
func (s *PaymentService) ListPayments(ctx context.Context) ([]*domain.Payment, error) {
	return s.store.Payments().List(ctx)
}

// GetReceipt builds the receipt for a captured payment.
func (s *PaymentService) GetReceipt(ctx context.Context, paymentID string) (*domain.Receipt, string, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}

	receipt, err := s.receipts.GenerateReceipt(ctx, payment)
	if err != nil {
		return nil, "", err
	}

	return receipt, s.receipts.FormatReceipt(receipt), nil
}

// withLock runs fn while holding the payment's lock.
func (s *PaymentService) withLock(ctx context.Context, paymentID string, fn func() error) error {
	if s.locks == nil {
		return fn()
	}

	token, ok, err := s.locks.AcquirePaymentLock(ctx, paymentID, s.policy.LockTTL)
	if err != nil {
		log.Printf("Error acquiring payment lock: payment=%s err=%v", paymentID, err)
		return ErrLockUnavailable
	}
	if !ok {
		return ErrPaymentBusy
	}

	defer func() {
		// ctx may already be cancelled here.
		if err := s.locks.ReleasePaymentLock(context.Background(), paymentID, token); err != nil {
			log.Printf("Warning: failed to release payment lock: payment=%s err=%v", paymentID, err)
		}
	}()

	return fn()
}

// afterTransition runs the side effects of a committed transition.
func (s *PaymentService) afterTransition(ctx context.Context, payment *domain.Payment, from domain.PaymentStatus, reason string) {
	if s.cache != nil {
		if err := s.cache.InvalidatePayment(ctx, payment.ID); err != nil {
			log.Printf("Warning: payment cache invalidation failed: payment=%s err=%v", payment.ID, err)
		}
	}

	log.Printf("Payment transition: payment=%s %s -> %s", payment.ID, from, payment.Status)
	s.recordTransition(payment, from, reason)

	if s.notifications == nil {
		return
	}
	switch payment.Status {
	case domain.PaymentStatusCaptured:
		_ = s.notifications.NotifyPaymentCaptured(ctx, payment)
	case domain.PaymentStatusFailed:
		_ = s.notifications.NotifyPaymentFailed(ctx, payment, reason)
	case domain.PaymentStatusCancelled:
		_ = s.notifications.NotifyPaymentCancelled(ctx, payment, reason)
	}
}

func (s *PaymentService) recordTransition(payment *domain.Payment, from domain.PaymentStatus, reason string) {
	if s.nrApp == nil {
		return
	}
	s.nrApp.RecordCustomEvent("PaymentTransition", map[string]interface{}{
		"paymentId": payment.ID,
		"from":      string(from),
		"to":        string(payment.Status),
		"provider":  payment.ProviderName,
		"amount":    payment.Amount.InexactFloat64(),
		"reason":    reason,
	})
}

func providerName(p *domain.Payment) string {
	if p.ProviderName == "" {
		return "UNKNOWN"
	}
	return p.ProviderName
}

func newOrderID() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}

func newProviderReference() string {
	return "DEMO-" + strings.ToUpper(uuid.New().String()[:8])
}

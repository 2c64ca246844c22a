package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"checkout/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationChallengeRequired NotificationType = "CHALLENGE_REQUIRED"
	NotificationPaymentCaptured   NotificationType = "PAYMENT_CAPTURED"
	NotificationPaymentFailed     NotificationType = "PAYMENT_FAILED"
	NotificationPaymentCancelled  NotificationType = "PAYMENT_CANCELLED"
	NotificationPaymentRefunded   NotificationType = "PAYMENT_REFUNDED"
	NotificationReceiptReady      NotificationType = "RECEIPT_READY"
)

// Notification represents a buyer notice about a payment.
type Notification struct {
	Type      NotificationType
	Recipient string // Buyer email
	Title     string
	Message   string
	Data      map[string]interface{}
	CreatedAt time.Time
}

// NotificationService delivers buyer notices for payment transitions.
type NotificationService struct {
	// Delivery is log-only; a mail or webhook sender would hang off here.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyChallengeRequired tells the buyer their bank is asking for a code.
func (s *NotificationService) NotifyChallengeRequired(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, Notification{
		Type:      NotificationChallengeRequired,
		Recipient: payment.BuyerEmail,
		Title:     "Verification Required",
		Message:   fmt.Sprintf("%s sent a one-time code to confirm your payment of %s %s", payment.ProviderName, payment.Amount.StringFixed(2), payment.Currency),
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"bank":       payment.ProviderName,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentCaptured tells the buyer the payment settled.
func (s *NotificationService) NotifyPaymentCaptured(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, Notification{
		Type:      NotificationPaymentCaptured,
		Recipient: payment.BuyerEmail,
		Title:     "Payment Successful",
		Message:   fmt.Sprintf("Payment of %s %s for %s was successful", payment.Amount.StringFixed(2), payment.Currency, payment.ProductName),
		Data: map[string]interface{}{
			"payment_id":         payment.ID,
			"provider_reference": payment.ProviderReference,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentFailed tells the buyer the payment failed.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, payment *domain.Payment, reason string) error {
	return s.send(ctx, Notification{
		Type:      NotificationPaymentFailed,
		Recipient: payment.BuyerEmail,
		Title:     "Payment Failed",
		Message:   fmt.Sprintf("Payment of %s %s failed: %s", payment.Amount.StringFixed(2), payment.Currency, reason),
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"reason":     reason,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentCancelled tells the buyer the payment was abandoned.
func (s *NotificationService) NotifyPaymentCancelled(ctx context.Context, payment *domain.Payment, reason string) error {
	return s.send(ctx, Notification{
		Type:      NotificationPaymentCancelled,
		Recipient: payment.BuyerEmail,
		Title:     "Payment Cancelled",
		Message:   fmt.Sprintf("Payment for %s was cancelled", payment.ProductName),
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"reason":     reason,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentRefunded tells the buyer money is on its way back.
func (s *NotificationService) NotifyPaymentRefunded(ctx context.Context, payment *domain.Payment, amount string) error {
	return s.send(ctx, Notification{
		Type:      NotificationPaymentRefunded,
		Recipient: payment.BuyerEmail,
		Title:     "Payment Refunded",
		Message:   fmt.Sprintf("%s %s of your payment for %s was refunded", amount, payment.Currency, payment.ProductName),
		Data: map[string]interface{}{
			"payment_id":      payment.ID,
			"refunded_amount": payment.RefundedAmount.StringFixed(2),
		},
		CreatedAt: time.Now(),
	})
}

// NotifyReceiptReady tells the buyer a receipt is available.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) error {
	return s.send(ctx, Notification{
		Type:      NotificationReceiptReady,
		Recipient: receipt.BuyerEmail,
		Title:     "Receipt Ready",
		Message:   fmt.Sprintf("Your receipt for %s %s is ready", receipt.Amount.StringFixed(2), receipt.Currency),
		Data: map[string]interface{}{
			"receipt_id": receipt.ID,
			"payment_id": receipt.PaymentID,
		},
		CreatedAt: time.Now(),
	})
}

// send delivers a notification (log-only delivery).
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.Recipient, notification.Title, notification.Message)

	return nil
}

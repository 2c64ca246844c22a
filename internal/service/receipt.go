package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkout/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	notificationService *NotificationService
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(notificationService *NotificationService) *ReceiptService {
	return &ReceiptService{
		notificationService: notificationService,
	}
}

// GenerateReceipt builds the receipt for a captured payment.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, payment *domain.Payment) (*domain.Receipt, error) {
	if payment == nil {
		return nil, ErrInvalidPaymentID
	}
	if payment.Status != domain.PaymentStatusCaptured || payment.Settlement == nil {
		return nil, ErrReceiptUnavailable
	}

	receipt := &domain.Receipt{
		ID:                uuid.New().String(),
		PaymentID:         payment.ID,
		OrderID:           payment.OrderID,
		ProductName:       payment.ProductName,
		BuyerEmail:        payment.BuyerEmail,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		CardInfo:          payment.CardInfo(),
		BankName:          payment.ProviderName,
		ProviderReference: payment.ProviderReference,
		CommissionRate:    payment.Settlement.CommissionRate,
		CommissionAmount:  payment.Settlement.CommissionAmount,
		NetAmount:         payment.Settlement.NetAmount,
		CapturedAt:        payment.UpdatedAt,
		CreatedAt:         time.Now(),
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyReceiptReady(ctx, receipt)
	}

	return receipt, nil
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := "=====================================\n"
	rule := "-------------------------------------\n"

	b.WriteString(line)
	b.WriteString("          PAYMENT RECEIPT\n")
	b.WriteString(line)
	b.WriteString("Payment ID: " + receipt.PaymentID + "\n")
	b.WriteString("Order ID:   " + receipt.OrderID + "\n")
	b.WriteString("Date:       " + receipt.CapturedAt.Format("Jan 02, 2006 3:04 PM") + "\n\n")

	b.WriteString("ORDER\n" + rule)
	b.WriteString("Product:    " + receipt.ProductName + "\n")
	b.WriteString("Amount:     " + receipt.Amount.StringFixed(2) + " " + receipt.Currency + "\n\n")

	b.WriteString("PAYMENT\n" + rule)
	b.WriteString("Card:       " + receipt.CardInfo + "\n")
	b.WriteString("Bank:       " + receipt.BankName + "\n")
	b.WriteString("Reference:  " + receipt.ProviderReference + "\n\n")

	b.WriteString("SETTLEMENT\n" + rule)
	b.WriteString("Commission: " + receipt.CommissionAmount.StringFixed(2) + " (" + receipt.CommissionRate.StringFixed(2) + "%)\n")
	b.WriteString("Net:        " + receipt.NetAmount.StringFixed(2) + " " + receipt.Currency + "\n")
	b.WriteString(line)

	return b.String()
}

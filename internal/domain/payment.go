package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	// PaymentStatusCreated means the order exists and no card has been tried.
	PaymentStatusCreated PaymentStatus = "CREATED"

	// PaymentStatusAuthorized means the card was accepted and a step-up
	// challenge is pending.
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"

	PaymentStatusCaptured          PaymentStatus = "CAPTURED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
)

// IsTerminal reports whether the status accepts no further protocol events.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCaptured,
		PaymentStatusFailed,
		PaymentStatusRefunded,
		PaymentStatusPartiallyRefunded,
		PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the known statuses.
func (s PaymentStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions lists the legal targets for every status. Refunds happen after
// capture and are outside the checkout protocol. A partial refund may be
// followed by further partial refunds.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusCreated:           {PaymentStatusAuthorized, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusAuthorized:        {PaymentStatusCaptured, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCaptured:          {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusRefunded:          nil,
	PaymentStatusFailed:            nil,
	PaymentStatusCancelled:         nil,
}

// CanTransition reports whether a payment may move from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is the unit the checkout protocol operates on.
type Payment struct {
	ID                string
	OrderID           string
	ProductName       string
	BuyerEmail        string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	CardBIN           string // First six digits, set on authorization.
	CardLastFour      string
	ProviderName      string // Issuing bank, set on authorization.
	ProviderReference string // Set on capture.
	Settlement        *Settlement
	RefundedAmount    decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CardInfo returns the masked card display string, or "" before authorization.
func (p *Payment) CardInfo() string {
	if p.CardBIN == "" {
		return ""
	}
	return p.CardBIN + "****" + p.CardLastFour
}

// IsTerminal reports whether the payment accepts no further protocol events.
func (p *Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// IsRefundable reports whether money can still be returned to the buyer.
func (p *Payment) IsRefundable() bool {
	switch p.Status {
	case PaymentStatusCaptured, PaymentStatusPartiallyRefunded:
		return p.RefundedAmount.LessThan(p.Amount)
	default:
		return false
	}
}

// Refundable returns the amount not yet refunded.
func (p *Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

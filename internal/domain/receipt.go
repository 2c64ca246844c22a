package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt summarizes a captured payment for the buyer.
type Receipt struct {
	ID                string
	PaymentID         string
	OrderID           string
	ProductName       string
	BuyerEmail        string
	Amount            decimal.Decimal
	Currency          string
	CardInfo          string
	BankName          string
	ProviderReference string
	CommissionRate    decimal.Decimal
	CommissionAmount  decimal.Decimal
	NetAmount         decimal.Decimal
	CapturedAt        time.Time
	CreatedAt         time.Time
}

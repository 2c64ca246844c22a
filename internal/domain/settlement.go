package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Settlement holds the commission split computed when a payment is captured.
type Settlement struct {
	CommissionRate   decimal.Decimal // Percent, e.g. 1.99.
	CommissionAmount decimal.Decimal
	NetAmount        decimal.Decimal
}

// Settle splits amount into commission and net using a percentage rate.
// The commission is rounded half-up to two decimal places.
func Settle(amount, ratePercent decimal.Decimal) Settlement {
	commission := amount.Mul(ratePercent).Div(hundred).Round(2)
	return Settlement{
		CommissionRate:   ratePercent,
		CommissionAmount: commission,
		NetAmount:        amount.Sub(commission),
	}
}

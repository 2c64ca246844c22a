package domain

import "github.com/shopspring/decimal"

// TestCard is a catalogue fixture used to simulate issuer behaviour.
type TestCard struct {
	Number         string
	Holder         string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
	BankName       string
	Brand          string
	CommissionRate decimal.Decimal
	ShouldFail     bool
	FailReason     string
}

// BIN returns the first six digits of the card number.
func (c *TestCard) BIN() string {
	if len(c.Number) < 6 {
		return c.Number
	}
	return c.Number[:6]
}

// Masked returns the card number with everything but BIN and last four hidden.
func (c *TestCard) Masked() string {
	return MaskPAN(c.Number)
}

// MaskPAN hides the middle digits of a card number.
func MaskPAN(number string) string {
	if len(number) < 10 {
		return number
	}
	return number[:6] + "******" + number[len(number)-4:]
}

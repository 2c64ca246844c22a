package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the checkout settles in.
const DefaultCurrency = "TRY"

// Order identifies a purchase intent. It is immutable once created.
type Order struct {
	ID          string
	ProductName string
	Amount      decimal.Decimal
	BuyerEmail  string
	CreatedAt   time.Time
}

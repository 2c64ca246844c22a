package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses as reported on the wire.
const (
	StatusCreated    = "CREATED"
	StatusAuthorized = "AUTHORIZED"
	StatusCaptured   = "CAPTURED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"

	StatusRefunded          = "REFUNDED"
	StatusPartiallyRefunded = "PARTIALLY_REFUNDED"
)

const (
	wireRequires3DS = "REQUIRES_3DS"
	wireFailed      = "FAILED"
	wireCaptured    = "CAPTURED"
)

// Card is the card data entered by the buyer.
type Card struct {
	Number      string `json:"cardNumber"`
	Holder      string `json:"cardHolder"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVV         string `json:"cvv"`
}

// Order is the result of CreateOrder.
type Order struct {
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// Payment is the server's payment projection.
type Payment struct {
	ID                string           `json:"id"`
	OrderID           string           `json:"orderId"`
	ProductName       string           `json:"productName"`
	BuyerEmail        string           `json:"buyerEmail"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	Status            string           `json:"status"`
	CardInfo          string           `json:"cardInfo"`
	ProviderName      string           `json:"providerName"`
	ProviderReference string           `json:"providerReference"`
	CommissionRate    *decimal.Decimal `json:"commissionRate"`
	CommissionAmount  *decimal.Decimal `json:"commissionAmount"`
	NetAmount         *decimal.Decimal `json:"netAmount"`
	RefundedAmount    *decimal.Decimal `json:"refundedAmount"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	Attempts          []Attempt        `json:"attempts"`
}

// Attempt is one recorded provider call.
type Attempt struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// TestCard is a catalogue card.
type TestCard struct {
	FullNumber   string          `json:"fullNumber"`
	Holder       string          `json:"holder"`
	ExpiryMonth  string          `json:"expiryMonth"`
	ExpiryYear   string          `json:"expiryYear"`
	CVV          string          `json:"cvv"`
	BankName     string          `json:"bankName"`
	Commission   decimal.Decimal `json:"commission"`
	WillFail     bool            `json:"willFail"`
	MaskedNumber string          `json:"maskedNumber"`
}

// Card returns the catalogue card as buyer input.
func (c TestCard) Card() Card {
	return Card{
		Number:      c.FullNumber,
		Holder:      c.Holder,
		ExpiryMonth: c.ExpiryMonth,
		ExpiryYear:  c.ExpiryYear,
		CVV:         c.CVV,
	}
}

// APILog is a captured exchange.
type APILog struct {
	ID             string    `json:"id"`
	Method         string    `json:"method"`
	Endpoint       string    `json:"endpoint"`
	ResponseStatus int       `json:"responseStatus"`
	LatencyMs      int64     `json:"latencyMs"`
	CorrelationID  string    `json:"correlationId"`
	PaymentID      string    `json:"paymentId"`
	RequestBody    string    `json:"requestBody"`
	ResponseBody   string    `json:"responseBody"`
	CreatedAt      time.Time `json:"createdAt"`
}

// APILogStats summarizes captured exchanges.
type APILogStats struct {
	TotalRequests int64   `json:"totalRequests"`
	SuccessCount  int64   `json:"successCount"`
	ErrorCount    int64   `json:"errorCount"`
	SuccessRate   float64 `json:"successRate"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	P50LatencyMs  int64   `json:"p50LatencyMs"`
	P95LatencyMs  int64   `json:"p95LatencyMs"`
	P99LatencyMs  int64   `json:"p99LatencyMs"`
}

// ProviderMetrics summarizes one issuing bank.
type ProviderMetrics struct {
	TotalAttempts int64   `json:"totalAttempts"`
	SuccessCount  int64   `json:"successCount"`
	FailureCount  int64   `json:"failureCount"`
	SuccessRate   float64 `json:"successRate"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
}

// Metrics is the dashboard summary.
type Metrics struct {
	TotalPayments    int64                       `json:"totalPayments"`
	TotalSuccessful  int64                       `json:"totalSuccessful"`
	TotalFailed      int64                       `json:"totalFailed"`
	TotalCancelled   int64                       `json:"totalCancelled"`
	TotalPending     int64                       `json:"totalPending"`
	SuccessRate      float64                     `json:"successRate"`
	PaymentsByStatus map[string]int64            `json:"paymentsByStatus"`
	TotalRevenue     decimal.Decimal             `json:"totalRevenue"`
	TotalCommission  decimal.Decimal             `json:"totalCommission"`
	NetRevenue       decimal.Decimal             `json:"netRevenue"`
	TotalRefunded    decimal.Decimal             `json:"totalRefunded"`
	PaymentsLast24h  int64                       `json:"paymentsLast24h"`
	VolumeLast24h    decimal.Decimal             `json:"volumeLast24h"`
	Providers        map[string]*ProviderMetrics `json:"providerMetrics"`
	AvgLatencyMs     float64                     `json:"avgLatencyMs"`
	MaxLatencyMs     int64                       `json:"maxLatencyMs"`
	API              *APILogStats                `json:"api"`
}

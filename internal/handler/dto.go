package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

// PaymentResponse is the wire projection of a payment.
type PaymentResponse struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"orderId"`
	ProductName       string            `json:"productName"`
	BuyerEmail        string            `json:"buyerEmail"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	CardInfo          string            `json:"cardInfo,omitempty"`
	ProviderName      string            `json:"providerName,omitempty"`
	ProviderReference string            `json:"providerReference,omitempty"`
	CommissionRate    *decimal.Decimal  `json:"commissionRate,omitempty"`
	CommissionAmount  *decimal.Decimal  `json:"commissionAmount,omitempty"`
	NetAmount         *decimal.Decimal  `json:"netAmount,omitempty"`
	RefundedAmount    *decimal.Decimal  `json:"refundedAmount,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Attempts          []AttemptResponse `json:"attempts,omitempty"`
}

// AttemptResponse is the wire projection of a payment attempt.
type AttemptResponse struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// TestCardResponse is a catalogue card as shown to testers.
type TestCardResponse struct {
	FullNumber   string          `json:"fullNumber"`
	Holder       string          `json:"holder"`
	ExpiryMonth  string          `json:"expiryMonth"`
	ExpiryYear   string          `json:"expiryYear"`
	CVV          string          `json:"cvv"`
	BankName     string          `json:"bankName"`
	Brand        string          `json:"brand"`
	Commission   decimal.Decimal `json:"commission"`
	WillFail     bool            `json:"willFail"`
	FailReason   string          `json:"failReason,omitempty"`
	MaskedNumber string          `json:"maskedNumber"`
}

// APILogResponse is the wire projection of a captured exchange.
type APILogResponse struct {
	ID             string    `json:"id"`
	Method         string    `json:"method"`
	Endpoint       string    `json:"endpoint"`
	ResponseStatus int       `json:"responseStatus"`
	LatencyMs      int64     `json:"latencyMs"`
	CorrelationID  string    `json:"correlationId"`
	PaymentID      string    `json:"paymentId,omitempty"`
	RequestBody    string    `json:"requestBody"`
	ResponseBody   string    `json:"responseBody"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                p.ID,
		OrderID:           p.OrderID,
		ProductName:       p.ProductName,
		BuyerEmail:        p.BuyerEmail,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		CardInfo:          p.CardInfo(),
		ProviderName:      p.ProviderName,
		ProviderReference: p.ProviderReference,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if s := p.Settlement; s != nil {
		resp.CommissionRate = &s.CommissionRate
		resp.CommissionAmount = &s.CommissionAmount
		resp.NetAmount = &s.NetAmount
	}
	if p.RefundedAmount.IsPositive() {
		refunded := p.RefundedAmount
		resp.RefundedAmount = &refunded
	}
	return resp
}

func toAttemptResponses(attempts []*domain.Attempt) []AttemptResponse {
	resp := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, AttemptResponse{
			ID:        a.ID,
			Provider:  a.Provider,
			Operation: string(a.Operation),
			Status:    string(a.Status),
			ErrorCode: a.ErrorCode,
			Message:   a.Message,
			LatencyMs: a.LatencyMs,
			CreatedAt: a.CreatedAt,
		})
	}
	return resp
}

func toTestCardResponse(c *domain.TestCard) TestCardResponse {
	return TestCardResponse{
		FullNumber:   c.Number,
		Holder:       c.Holder,
		ExpiryMonth:  c.ExpiryMonth,
		ExpiryYear:   c.ExpiryYear,
		CVV:          c.CVV,
		BankName:     c.BankName,
		Brand:        c.Brand,
		Commission:   c.CommissionRate,
		WillFail:     c.ShouldFail,
		FailReason:   c.FailReason,
		MaskedNumber: c.Masked(),
	}
}

func toAPILogResponse(l *domain.APILog) APILogResponse {
	return APILogResponse{
		ID:             l.ID,
		Method:         l.Method,
		Endpoint:       l.Endpoint,
		ResponseStatus: l.ResponseStatus,
		LatencyMs:      l.LatencyMs,
		CorrelationID:  l.CorrelationID,
		PaymentID:      l.PaymentID,
		RequestBody:    l.RequestBody,
		ResponseBody:   l.ResponseBody,
		CreatedAt:      l.CreatedAt,
	}
}

// ReceiptResponse is the wire projection of a receipt.
type ReceiptResponse struct {
	ID                string          `json:"id"`
	PaymentID         string          `json:"paymentId"`
	OrderID           string          `json:"orderId"`
	ProductName       string          `json:"productName"`
	BuyerEmail        string          `json:"buyerEmail"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CardInfo          string          `json:"cardInfo"`
	BankName          string          `json:"bankName"`
	ProviderReference string          `json:"providerReference"`
	CommissionRate    decimal.Decimal `json:"commissionRate"`
	CommissionAmount  decimal.Decimal `json:"commissionAmount"`
	NetAmount         decimal.Decimal `json:"netAmount"`
	CapturedAt        time.Time       `json:"capturedAt"`
}

func toReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:                r.ID,
		PaymentID:         r.PaymentID,
		OrderID:           r.OrderID,
		ProductName:       r.ProductName,
		BuyerEmail:        r.BuyerEmail,
		Amount:            r.Amount,
		Currency:          r.Currency,
		CardInfo:          r.CardInfo,
		BankName:          r.BankName,
		ProviderReference: r.ProviderReference,
		CommissionRate:    r.CommissionRate,
		CommissionAmount:  r.CommissionAmount,
		NetAmount:         r.NetAmount,
		CapturedAt:        r.CapturedAt,
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"checkout/internal/service"
)

// Authorization outcomes reported by POST /payments/:id/pay.
const (
	StatusRequires3DS = "REQUIRES_3DS"
	StatusFailed      = "FAILED"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PayRequest is the HTTP request body for authorizing a payment.
type PayRequest struct {
	CardNumber  string `json:"cardNumber"`
	CardHolder  string `json:"cardHolder"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVV         string `json:"cvv"`
}

// PayResponse is the HTTP response for an authorization.
type PayResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	BankName  string `json:"bankName,omitempty"`
	Message   string `json:"message,omitempty"`
}

// VerifyRequest is the HTTP request body for a challenge answer.
type VerifyRequest struct {
	OTP string `json:"otp"`
}

// VerifyResponse is the HTTP response for a challenge answer.
type VerifyResponse struct {
	Success           bool   `json:"success"`
	Status            string `json:"status"`
	ProviderReference string `json:"providerReference,omitempty"`
	Message           string `json:"message,omitempty"`
	Code              string `json:"code,omitempty"`
	RemainingAttempts int    `json:"remainingAttempts,omitempty"`
}

// CancelRequest is the optional HTTP request body for cancelling a payment.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// RefundRequest is the optional HTTP request body for a refund. Without an
// amount the whole remaining amount is refunded.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// Pay handles POST /payments/:id/pay
func (h *PaymentHandler) Pay(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.Authorize(c.Request.Context(), service.AuthorizeRequest{
		PaymentID:   c.Param("id"),
		CardNumber:  req.CardNumber,
		CardHolder:  req.CardHolder,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PayResponse{PaymentID: result.Payment.ID, Status: StatusFailed, Message: result.Message}
	if result.ChallengeRequired() {
		resp.Status = StatusRequires3DS
		resp.BankName = result.BankName
	}
	respondJSON(c, http.StatusOK, resp)
}

// Verify3DS handles POST /payments/:id/verify-3ds
func (h *PaymentHandler) Verify3DS(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.VerifyChallenge(c.Request.Context(), c.Param("id"), req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, VerifyResponse{
		Success:           result.Success,
		Status:            string(result.Payment.Status),
		ProviderReference: result.Payment.ProviderReference,
		Message:           result.Message,
		Code:              result.Code,
		RemainingAttempts: result.RemainingAttempts,
	})
}

// Cancel handles POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	payment, err := h.paymentService.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// Refund handles POST /payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	payment, err := h.paymentService.Refund(c.Request.Context(), service.RefundRequest{
		PaymentID: c.Param("id"),
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// GetAttempts handles GET /payments/:id/attempts
func (h *PaymentHandler) GetAttempts(c *gin.Context) {
	attempts, err := h.paymentService.ListAttempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toAttemptResponses(attempts))
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	detail, err := h.paymentService.GetPaymentDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toPaymentResponse(detail.Payment)
	resp.Attempts = toAttemptResponses(detail.Attempts)
	respondJSON(c, http.StatusOK, resp)
}

// GetAll handles GET /payments
func (h *PaymentHandler) GetAll(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	respondJSON(c, http.StatusOK, resp)
}

// GetReceipt handles GET /payments/:id/receipt. It returns plain text when
// the caller asks for it and JSON otherwise.
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	receipt, text, err := h.paymentService.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain) == gin.MIMEPlain {
		c.String(http.StatusOK, text)
		return
	}
	respondJSON(c, http.StatusOK, toReceiptResponse(receipt))
}

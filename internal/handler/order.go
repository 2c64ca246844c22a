package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"checkout/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	paymentService *service.PaymentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(paymentService *service.PaymentService) *OrderHandler {
	return &OrderHandler{paymentService: paymentService}
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	ProductName string          `json:"productName" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Email       string          `json:"email" binding:"required,email"`
}

// CreateOrderResponse is the HTTP response for order creation.
type CreateOrderResponse struct {
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// CreateOrder handles POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		ProductName: req.ProductName,
		Amount:      req.Amount,
		BuyerEmail:  req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateOrderResponse{
		PaymentID: result.Payment.ID,
		OrderID:   result.Order.ID,
		Amount:    result.Payment.Amount,
		Status:    string(result.Payment.Status),
	})
}

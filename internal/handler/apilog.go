package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout/internal/domain"
	"checkout/internal/service"
)

// APILogHandler serves captured API exchanges.
type APILogHandler struct {
	apiLogService *service.APILogService
}

// NewAPILogHandler creates a new APILogHandler.
func NewAPILogHandler(apiLogService *service.APILogService) *APILogHandler {
	return &APILogHandler{apiLogService: apiLogService}
}

// GetAll handles GET /api-logs, optionally filtered with ?paymentId=
func (h *APILogHandler) GetAll(c *gin.Context) {
	var (
		logs []*domain.APILog
		err  error
	)
	if paymentID := c.Query("paymentId"); paymentID != "" {
		logs, err = h.apiLogService.ListByPaymentID(c.Request.Context(), paymentID)
	} else {
		logs, err = h.apiLogService.Recent(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]APILogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toAPILogResponse(l))
	}
	respondJSON(c, http.StatusOK, resp)
}

// GetStats handles GET /api-logs/stats
func (h *APILogHandler) GetStats(c *gin.Context) {
	stats, err := h.apiLogService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, stats)
}

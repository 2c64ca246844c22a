package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout/internal/service"
)

// MetricsHandler serves the dashboard summary.
type MetricsHandler struct {
	metricsService *service.MetricsService
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metricsService *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// GetSummary handles GET /metrics
func (h *MetricsHandler) GetSummary(c *gin.Context) {
	summary, err := h.metricsService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, summary)
}

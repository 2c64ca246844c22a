package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout/internal/service"
)

// TestCardHandler serves the test-card catalogue.
type TestCardHandler struct {
	testCardService *service.TestCardService
}

// NewTestCardHandler creates a new TestCardHandler.
func NewTestCardHandler(testCardService *service.TestCardService) *TestCardHandler {
	return &TestCardHandler{testCardService: testCardService}
}

// GetAll handles GET /test-cards
func (h *TestCardHandler) GetAll(c *gin.Context) {
	cards, err := h.testCardService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]TestCardResponse, 0, len(cards))
	for _, card := range cards {
		resp = append(resp, toTestCardResponse(card))
	}
	respondJSON(c, http.StatusOK, resp)
}

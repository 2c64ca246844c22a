package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributesMiddleware tags the nrgin transaction with the
// correlation and payment ids and reports handler errors. It must run after
// nrgin.Middleware and CorrelationMiddleware.
func NewRelicAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		txn.AddAttribute("correlationId", CorrelationID(c))
		if paymentID := c.Param("id"); paymentID != "" {
			txn.AddAttribute("paymentId", paymentID)
		}

		c.Next()

		// Record error if present.
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationHeader carries the id that joins client calls to server logs.
const CorrelationHeader = "X-Correlation-Id"

const (
	correlationKey       = "correlationId"
	maxCorrelationLength = 64
)

// CorrelationMiddleware accepts the caller's correlation id or generates
// one, stores it on the context and echoes it on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if id == "" || len(id) > maxCorrelationLength {
			id = uuid.NewString()
		}

		c.Set(correlationKey, id)
		c.Header(CorrelationHeader, id)

		c.Next()
	}
}

// CorrelationID returns the request's correlation id, or "" outside the
// middleware.
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationKey)
}

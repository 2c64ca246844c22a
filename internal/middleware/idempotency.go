package middleware

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"checkout/internal/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	idempotencyReplayed    = "Idempotent-Replayed"
	idempotencyTTL         = 24 * time.Hour
	idempotencyInFlightTTL = 30 * time.Second
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func captureResponse(c *gin.Context) *responseWriter {
	w := &responseWriter{
		ResponseWriter: c.Writer,
		body:           &bytes.Buffer{},
	}
	c.Writer = w
	return w
}

// IdempotencyMiddleware returns middleware that replays the stored response
// for a repeated Idempotency-Key and rejects a duplicate that arrives while
// the first is still running. A nil store disables it.
func IdempotencyMiddleware(store redis.IdempotencyStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		// Scope keys to the route so one key cannot replay another endpoint.
		cacheKey := c.Request.Method + " " + c.Request.URL.Path + " " + key

		data, err := store.GetResponse(ctx, cacheKey)
		if err != nil {
			log.Printf("Warning: idempotency lookup failed: key=%s err=%v", key, err)
			c.Next()
			return
		}
		if data != nil {
			var cached cachedResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				replay(c, &cached)
				return
			}
		}

		ok, err := store.Reserve(ctx, cacheKey, idempotencyInFlightTTL)
		if err != nil {
			log.Printf("Warning: idempotency reserve failed: key=%s err=%v", key, err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this Idempotency-Key is already in progress",
				"code":  "conflict",
			})
			return
		}
		defer func() {
			_ = store.Release(ctx, cacheKey)
		}()

		w := captureResponse(c)

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 500 {
			response := cachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if data, err := json.Marshal(&response); err == nil {
				_ = store.SaveResponse(ctx, cacheKey, data, idempotencyTTL)
			}
		}
	}
}

func replay(c *gin.Context, cached *cachedResponse) {
	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header(idempotencyReplayed, "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}

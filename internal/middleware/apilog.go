package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"checkout/internal/domain"
	"checkout/internal/validation"
)

// MaxLoggedBody is the longest request or response body kept in a log.
const MaxLoggedBody = 5000

// MaxRequestBody is the largest request body accepted on logged routes.
const MaxRequestBody = 1 << 20

const truncatedSuffix = "...[truncated]"

var loggedPrefixes = []string{"/orders", "/payments", "/test-cards"}

var (
	panKeys    = []string{"cardNumber", "fullNumber"}
	secretKeys = []string{"cvv", "otp"}

	// sensitiveField matches a sensitive key and its string or bare value in
	// bodies that are not valid JSON. An unterminated string still matches.
	sensitiveField = regexp.MustCompile(`(?i)("(cardNumber|fullNumber|cvv|otp)"\s*:\s*)("(?:[^"\\]|\\.)*"?|[-+.0-9eE]+)`)
)

// LogRecorder receives captured exchanges.
type LogRecorder interface {
	Record(entry *domain.APILog)
}

// APILogMiddleware captures protocol exchanges with card data masked and
// hands them to recorder without blocking the response.
func APILogMiddleware(recorder LogRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil || !shouldLog(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()

		var reqBody []byte
		tooLarge := false
		if c.Request.Body != nil {
			var err error
			reqBody, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBody))
			var maxErr *http.MaxBytesError
			tooLarge = errors.As(err, &maxErr)
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		w := captureResponse(c)

		if tooLarge {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
				"code":  "validation_error",
			})
		} else {
			c.Next()
		}

		recorder.Record(&domain.APILog{
			ID:             uuid.NewString(),
			CorrelationID:  CorrelationID(c),
			PaymentID:      c.Param("id"),
			Method:         c.Request.Method,
			Endpoint:       c.Request.URL.Path,
			RequestBody:    MaskBody(string(reqBody)),
			ResponseStatus: c.Writer.Status(),
			ResponseBody:   MaskBody(w.body.String()),
			LatencyMs:      time.Since(start).Milliseconds(),
			CreatedAt:      start,
		})
	}
}

func shouldLog(path string) bool {
	for _, p := range loggedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// MaskBody hides card numbers, CVVs and one-time codes in a body and
// truncates it to MaxLoggedBody. Keys match regardless of case. Valid JSON is
// masked structurally; anything else falls back to pattern matching.
func MaskBody(body string) string {
	if body == "" {
		return ""
	}

	if masked, ok := maskJSON(body); ok {
		body = masked
	} else {
		body = sensitiveField.ReplaceAllStringFunc(body, func(m string) string {
			parts := sensitiveField.FindStringSubmatch(m)
			return parts[1] + `"` + maskValue(parts[2], strings.Trim(parts[3], `"`)) + `"`
		})
	}

	return truncate(body)
}

func maskJSON(body string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return "", false
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(maskTree(v)); err != nil {
		return "", false
	}
	return strings.TrimSuffix(buf.String(), "\n"), true
}

func maskTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if !isSensitive(k) {
				t[k] = maskTree(val)
				continue
			}
			switch raw := val.(type) {
			case string:
				t[k] = maskValue(k, raw)
			case json.Number:
				t[k] = maskValue(k, raw.String())
			default:
				t[k] = maskTree(val)
			}
		}
	case []any:
		for i := range t {
			t[i] = maskTree(t[i])
		}
	}
	return v
}

func isSensitive(key string) bool {
	return matchesAny(key, panKeys) || matchesAny(key, secretKeys)
}

func maskValue(key, value string) string {
	if matchesAny(key, panKeys) {
		return maskPAN(value)
	}
	return "***"
}

func matchesAny(key string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

// truncate cuts body to MaxLoggedBody bytes without splitting a rune.
func truncate(body string) string {
	if len(body) <= MaxLoggedBody {
		return body
	}
	n := MaxLoggedBody
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return body[:n] + truncatedSuffix
}

func maskPAN(pan string) string {
	digits := validation.NormalizeCardNumber(pan)
	if len(digits) < 10 {
		return "****"
	}
	return domain.MaskPAN(digits)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"checkout/internal/domain"
	"checkout/internal/repository/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []*domain.APILog
}

func (r *recordingRecorder) Record(entry *domain.APILog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingRecorder) all() []*domain.APILog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.APILog(nil), r.entries...)
}

func TestCorrelationMiddleware(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(CorrelationMiddleware())
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, CorrelationID(c))
	})

	t.Run("echoes caller id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(CorrelationHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
			t.Errorf("expected echoed id, got %q", got)
		}
		if w.Body.String() != "abc-123" {
			t.Errorf("expected id on context, got %q", w.Body.String())
		}
	})

	t.Run("generates when absent", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		id := w.Header().Get(CorrelationHeader)
		if len(id) != 36 || w.Body.String() != id {
			t.Errorf("expected generated uuid, got header %q body %q", id, w.Body.String())
		}
	})
}

func TestMaskBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{
			"card and cvv",
			`{"cardNumber":"4111111111111111","cvv":"123","cardHolder":"AHMET YILMAZ"}`,
			`{"cardHolder":"AHMET YILMAZ","cardNumber":"411111******1111","cvv":"***"}`,
		},
		{
			"spaced card",
			`{"cardNumber": "4111 1111 1111 1111"}`,
			`{"cardNumber":"411111******1111"}`,
		},
		{"short card", `{"cardNumber":"4111"}`, `{"cardNumber":"****"}`},
		{"otp", `{"otp":"111111"}`, `{"otp":"***"}`},
		{"fixture list", `[{"fullNumber":"5555555555554444","cvv":"456"}]`, `[{"cvv":"***","fullNumber":"555555******4444"}]`},
		{
			"upper case keys",
			`{"CardNumber":"4111111111111111","CVV":"123"}`,
			`{"CVV":"***","CardNumber":"411111******1111"}`,
		},
		{
			"numeric values",
			`{"cardNumber":4111111111111111,"cvv":123}`,
			`{"cardNumber":"411111******1111","cvv":"***"}`,
		},
		{
			"nested",
			`{"card":{"CARDNUMBER":"4111111111111111","Otp":111111},"amount":1500.00}`,
			`{"amount":1500.00,"card":{"CARDNUMBER":"411111******1111","Otp":"***"}}`,
		},
		{
			"malformed",
			`{"CardNumber":4111111111111111,"Cvv":"12`,
			`{"CardNumber":"411111******1111","Cvv":"***"`,
		},
		{
			"malformed quoted",
			`{"cardNumber":"4111111111111111","cvv":"123",`,
			`{"cardNumber":"411111******1111","cvv":"***",`,
		},
		{"plain text", "Card: 411111****1111", "Card: 411111****1111"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := MaskBody(tt.in); got != tt.want {
				t.Errorf("MaskBody() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMaskBody_Truncates(t *testing.T) {
	t.Parallel()

	got := MaskBody(strings.Repeat("x", MaxLoggedBody+10))
	if len(got) != MaxLoggedBody+len(truncatedSuffix) || !strings.HasSuffix(got, truncatedSuffix) {
		t.Errorf("unexpected truncation, length %d", len(got))
	}

	// A two-byte rune straddling the limit is dropped whole.
	got = MaskBody(strings.Repeat("x", MaxLoggedBody-1) + "ş" + "tail")
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if want := strings.Repeat("x", MaxLoggedBody-1) + truncatedSuffix; got != want {
		t.Errorf("unexpected truncation, length %d", len(got))
	}
}

func TestAPILogMiddleware(t *testing.T) {
	t.Parallel()

	recorder := &recordingRecorder{}
	router := gin.New()
	router.Use(CorrelationMiddleware(), APILogMiddleware(recorder))
	router.POST("/payments/:id/pay", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil || body["cardNumber"] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "handler did not see the body"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "REQUIRES_3DS"})
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/payments/pay-1/pay",
		strings.NewReader(`{"cardNumber":"4111111111111111","cvv":"123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CorrelationHeader, "corr-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := recorder.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 captured exchange, got %d", len(entries))
	}
	e := entries[0]
	if e.PaymentID != "pay-1" || e.CorrelationID != "corr-1" || e.Endpoint != "/payments/pay-1/pay" {
		t.Errorf("unexpected identity fields %+v", e)
	}
	if e.ResponseStatus != http.StatusOK || !strings.Contains(e.ResponseBody, "REQUIRES_3DS") {
		t.Errorf("unexpected response capture %d %s", e.ResponseStatus, e.ResponseBody)
	}
	if strings.Contains(e.RequestBody, "4111111111111111") || strings.Contains(e.RequestBody, `"123"`) {
		t.Errorf("request body not masked: %s", e.RequestBody)
	}
}

func TestAPILogMiddleware_MasksKeysBindingAccepts(t *testing.T) {
	t.Parallel()

	type payRequest struct {
		CardNumber string `json:"cardNumber" binding:"required"`
		CVV        string `json:"cvv"`
	}

	recorder := &recordingRecorder{}
	router := gin.New()
	router.Use(APILogMiddleware(recorder))
	router.POST("/payments/:id/pay", func(c *gin.Context) {
		var req payRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bound": true})
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"mixed case keys bind", `{"CardNumber":"4111111111111111","CVV":"123"}`, http.StatusOK},
		{"numeric values are rejected", `{"cardNumber":4111111111111111,"cvv":123}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/payments/pay-1/pay", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tt.wantStatus {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.wantStatus, w.Code, w.Body.String())
		}
	}

	entries := recorder.all()
	if len(entries) != len(tests) {
		t.Fatalf("expected %d captured exchanges, got %d", len(tests), len(entries))
	}
	for _, e := range entries {
		if strings.Contains(e.RequestBody, "4111111111111111") || strings.Contains(e.RequestBody, "123") {
			t.Errorf("request body not masked: %s", e.RequestBody)
		}
	}
}

func TestAPILogMiddleware_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	recorder := &recordingRecorder{}
	reached := false
	router := gin.New()
	router.Use(APILogMiddleware(recorder))
	router.POST("/orders", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusCreated)
	})

	body := `{"productName":"` + strings.Repeat("a", MaxRequestBody) + `"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if reached {
		t.Error("handler ran for an oversized body")
	}

	entries := recorder.all()
	if len(entries) != 1 || entries[0].ResponseStatus != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected the rejected exchange to be captured, got %+v", entries)
	}
	if len(entries[0].RequestBody) > MaxLoggedBody+len(truncatedSuffix) {
		t.Errorf("logged body not truncated, length %d", len(entries[0].RequestBody))
	}
}

func TestIdempotencyMiddleware_Replays(t *testing.T) {
	t.Parallel()

	var calls int32
	router := gin.New()
	router.Use(IdempotencyMiddleware(memory.NewIdempotencyStore()))
	router.POST("/orders", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusCreated, gin.H{"call": n})
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set(idempotencyHeader, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send("key-1")
	second := send("key-1")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("unexpected codes %d %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("expected identical replay, got %s and %s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get(idempotencyReplayed) != "true" {
		t.Error("expected replay header")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("handler ran %d times", calls)
	}

	send("")
	send("key-2")
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 handler runs, got %d", calls)
	}
}

func TestIdempotencyMiddleware_RejectsInFlightDuplicate(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})

	router := gin.New()
	router.Use(IdempotencyMiddleware(memory.NewIdempotencyStore()))
	router.POST("/payments/:id/pay", func(c *gin.Context) {
		close(entered)
		<-release
		c.JSON(http.StatusOK, gin.H{"status": "REQUIRES_3DS"})
	})

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/payments/p1/pay", strings.NewReader(`{}`))
		req.Header.Set(idempotencyHeader, "dup")
		return req
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newReq())
		done <- w
	}()

	<-entered
	w := httptest.NewRecorder()
	router.ServeHTTP(w, newReq())
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for in-flight duplicate, got %d", w.Code)
	}

	close(release)
	if first := <-done; first.Code != http.StatusOK {
		t.Errorf("expected first request to succeed, got %d", first.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(CORSMiddleware())
	router.POST("/orders", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/orders", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), idempotencyHeader) {
		t.Errorf("missing allowed headers: %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
	"checkout/internal/config"
)

var testCard = Card{
	Number:      "4111 1111 1111 1111",
	Holder:      "AHMET YILMAZ",
	ExpiryMonth: "12",
	ExpiryYear:  "2030",
	CVV:         "123",
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	return New(config.ClientConfig{BaseURL: srv.URL + "/", Timeout: time.Second}), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthorize_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]any
		want AuthorizationOutcome
	}{
		{"challenge", map[string]any{"status": "REQUIRES_3DS", "bankName": "Garanti BBVA"}, ChallengeRequired{BankName: "Garanti BBVA"}},
		{"declined", map[string]any{"status": "FAILED", "message": "Insufficient funds"}, Declined{Message: "Insufficient funds"}},
		{"settled", map[string]any{"status": "CAPTURED", "providerReference": "DEMO-1"}, Settled{ProviderReference: "DEMO-1"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/payments/p1/pay" || r.Method != http.MethodPost {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var card Card
				_ = json.NewDecoder(r.Body).Decode(&card)
				if card.Number != "4111111111111111" {
					t.Errorf("expected normalized card number, got %q", card.Number)
				}
				writeJSON(w, http.StatusOK, tt.body)
			})

			got, err := c.Authorize(context.Background(), "p1", testCard)
			if err != nil {
				t.Fatalf("Authorize() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorize() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestAuthorize_UnknownStatusIsServiceError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "PENDING"})
	})

	_, err := c.Authorize(context.Background(), "p1", testCard)
	if !errors.Is(err, apperr.ErrService) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestValidationRunsBeforeNetwork(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx := context.Background()

	bad := testCard
	bad.CVV = "12"
	if _, err := c.Authorize(ctx, "p1", bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad cvv: expected validation error, got %v", err)
	}
	if _, err := c.VerifyChallenge(ctx, "p1", "12345"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("short code: expected validation error, got %v", err)
	}
	if _, err := c.CreateOrder(ctx, "Laptop", decimal.Zero, "buyer@example.com"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero amount: expected validation error, got %v", err)
	}
	if _, err := c.Authorize(ctx, "", testCard); !errors.Is(err, ErrInvalidPaymentID) {
		t.Errorf("empty id: expected ErrInvalidPaymentID, got %v", err)
	}

	if n := atomic.LoadInt32(hits); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		body     map[string]any
		wantKind error
		wantMsg  string
	}{
		{http.StatusBadRequest, map[string]any{"error": "invalid cvv", "code": "validation_error"}, apperr.ErrValidation, "invalid cvv"},
		{http.StatusNotFound, map[string]any{"error": "entity not found", "code": "not_found"}, apperr.ErrNotFound, "entity not found"},
		{http.StatusConflict, map[string]any{"error": "payment is not awaiting a challenge", "code": "conflict"}, apperr.ErrConflict, "payment is not awaiting a challenge"},
		{http.StatusInternalServerError, nil, apperr.ErrService, "Internal Server Error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.VerifyChallenge(context.Background(), "p1", "111111")
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cerr.Message != tt.wantMsg || cerr.Status != tt.status || cerr.Indeterminate {
				t.Errorf("unexpected error %+v", cerr)
			}
		})
	}
}

func TestVerifyChallenge_Outcomes(t *testing.T) {
	t.Parallel()

	var call int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&call, 1) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false, "status": "AUTHORIZED", "code": "INVALID_OTP", "remainingAttempts": 2,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "CAPTURED", "providerReference": "DEMO-ABCD1234"})
	})

	got, err := c.VerifyChallenge(context.Background(), "p1", "000000")
	if err != nil {
		t.Fatalf("VerifyChallenge() error: %v", err)
	}
	rejected, ok := got.(Rejected)
	if !ok || rejected.Code != "INVALID_OTP" || !rejected.CanRetry() {
		t.Fatalf("unexpected outcome %#v", got)
	}

	got, err = c.VerifyChallenge(context.Background(), "p1", "111111")
	if err != nil {
		t.Fatalf("VerifyChallenge() error: %v", err)
	}
	if settled, ok := got.(Settled); !ok || settled.ProviderReference != "DEMO-ABCD1234" {
		t.Errorf("unexpected outcome %#v", got)
	}
}

func TestVerifyChallenge_MissingOutcome(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "CAPTURED"})
	})

	if _, err := c.VerifyChallenge(context.Background(), "p1", "111111"); !errors.Is(err, apperr.ErrService) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestSingleFlightPerPayment(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked int32
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/payments/p1/pay" && atomic.CompareAndSwapInt32(&blocked, 0, 1) {
			close(entered)
			<-release
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "REQUIRES_3DS", "bankName": "Akbank"})
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Authorize(context.Background(), "p1", testCard)
		done <- err
	}()
	<-entered

	if _, err := c.VerifyChallenge(context.Background(), "p1", "111111"); !errors.Is(err, ErrInFlight) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
	if _, err := c.Authorize(context.Background(), "p2", testCard); err != nil {
		t.Errorf("other payment should not be blocked: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
	if _, err := c.Authorize(context.Background(), "p1", testCard); err != nil {
		t.Errorf("guard not released: %v", err)
	}
}

func TestTransportFailureIsIndeterminate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(config.ClientConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := c.Authorize(context.Background(), "p1", testCard)
	var cerr *Error
	if !errors.As(err, &cerr) || !errors.Is(err, apperr.ErrService) {
		t.Fatalf("expected service *Error, got %v", err)
	}
	if !cerr.Indeterminate {
		t.Error("expected state-changing transport failure to be indeterminate")
	}

	_, err = c.ListPayments(context.Background())
	if !errors.As(err, &cerr) || cerr.Indeterminate {
		t.Errorf("reads must not be indeterminate: %v", err)
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"status": "REQUIRES_3DS"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Authorize(ctx, "p1", testCard)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperr.ErrService) {
		t.Fatalf("expected timeout service error, got %v", err)
	}
}

func TestCorrelationHeaderSent(t *testing.T) {
	t.Parallel()

	ids := make(chan string, 2)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(correlationHeader)
		writeJSON(w, http.StatusOK, []any{})
	})

	_, _ = c.ListPayments(context.Background())
	_, _ = c.ListTestCards(context.Background())

	first, second := <-ids, <-ids
	if first == "" || second == "" || first == second {
		t.Errorf("expected distinct correlation ids, got %q and %q", first, second)
	}
}

func TestReceiptText(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/plain" {
			t.Errorf("expected text/plain accept, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("PAYMENT RECEIPT"))
	})

	text, err := c.Receipt(context.Background(), "p1")
	if err != nil || text != "PAYMENT RECEIPT" {
		t.Errorf("Receipt() = %q, %v", text, err)
	}
}

func TestRefund(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments/p1/refund" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Amount string `json:"amount"`
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Amount != "25.5" || body.Reason != "damaged" {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "status": StatusPartiallyRefunded, "refundedAmount": "25.50"})
	})

	amount := decimal.RequireFromString("25.50")
	p, err := c.Refund(context.Background(), "p1", &amount, "damaged")
	if err != nil {
		t.Fatalf("Refund() error: %v", err)
	}
	if p.Status != StatusPartiallyRefunded || p.RefundedAmount == nil || p.RefundedAmount.StringFixed(2) != "25.50" {
		t.Errorf("unexpected payment %+v", p)
	}

	zero := decimal.Zero
	if _, err := c.Refund(context.Background(), "p1", &zero, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected local validation error, got %v", err)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Errorf("invalid refund reached the server")
	}
}

func TestAttempts(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/payments/missing/attempts" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found", "code": "not_found"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "a1", "operation": "AUTHORIZE", "status": "SUCCESS"},
			{"id": "a2", "operation": "CHALLENGE", "status": "FAILURE", "errorCode": "INVALID_OTP"},
		})
	})

	attempts, err := c.Attempts(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Attempts() error: %v", err)
	}
	if len(attempts) != 2 || attempts[1].ErrorCode != "INVALID_OTP" {
		t.Errorf("unexpected attempts %+v", attempts)
	}
	if _, err := c.Attempts(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

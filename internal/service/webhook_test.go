package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"checkout/internal/domain"
	"checkout/internal/repository/memory"
)

func newDelivery(t *testing.T, store *memory.Store, url string, now time.Time) *domain.WebhookDelivery {
	t.Helper()
	d := &domain.WebhookDelivery{
		ID:          "d1",
		EventID:     "e1",
		EventType:   domain.EventPaymentCaptured,
		TargetURL:   url,
		Payload:     `{"eventId":"e1"}`,
		Status:      domain.DeliveryStatusPending,
		NextRetryAt: now,
		CreatedAt:   now,
	}
	if err := store.Webhooks().Create(context.Background(), d); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return d
}

func storedDelivery(t *testing.T, store *memory.Store) *domain.WebhookDelivery {
	t.Helper()
	deliveries, _ := store.Webhooks().ListByEventID(context.Background(), "e1")
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	return deliveries[0]
}

func TestSignWebhook(t *testing.T) {
	t.Parallel()

	// echo -n '{"a":1}.1700000000000' | openssl dgst -sha256 -hmac secret
	a := SignWebhook("secret", `{"a":1}`, "1700000000000")
	if a != "147f896cb1234b622992d21fe98a6bc459dc6840aa9655f2267f9e6ba91aa154" {
		t.Fatalf("unexpected signature %q", a)
	}
	if a == SignWebhook("other", `{"a":1}`, "1700000000000") || a == SignWebhook("secret", `{"a":1}`, "1700000000001") {
		t.Error("signature must depend on secret and timestamp")
	}
}

func TestWebhookDispatcher_DeliversSigned(t *testing.T) {
	t.Parallel()

	var gotID, gotSig, gotTS, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderWebhookID)
		gotSig = r.Header.Get(HeaderWebhookSignature)
		gotTS = r.Header.Get(HeaderWebhookTimestamp)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	store := memory.NewStore()
	now := time.Now()
	d := newDelivery(t, store, srv.URL, now)

	dispatcher := NewWebhookDispatcher(store.Webhooks(), nil, "secret", time.Second, time.Minute, 5)
	n, err := dispatcher.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delivered, got %d", n)
	}

	if gotID != d.ID || gotBody != d.Payload {
		t.Errorf("unexpected request id=%q body=%q", gotID, gotBody)
	}
	if gotSig != SignWebhook("secret", d.Payload, gotTS) {
		t.Errorf("signature %q does not verify", gotSig)
	}

	stored := storedDelivery(t, store)
	if stored.Status != domain.DeliveryStatusDelivered || stored.ResponseCode != 200 || stored.ResponseBody != "ok" {
		t.Errorf("unexpected delivery state %+v", stored)
	}
}

func TestWebhookDispatcher_BacksOffThenExhausts(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := memory.NewStore()
	now := time.Now()
	newDelivery(t, store, srv.URL, now)

	dispatcher := NewWebhookDispatcher(store.Webhooks(), nil, "secret", time.Second, time.Minute, 3)
	clock := now
	dispatcher.now = func() time.Time { return clock }

	if _, err := dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue() error: %v", err)
	}
	stored := storedDelivery(t, store)
	if stored.Status != domain.DeliveryStatusFailed || stored.RetryCount != 1 || stored.ResponseCode != 503 {
		t.Fatalf("unexpected delivery after first failure %+v", stored)
	}
	if !stored.NextRetryAt.Equal(now.Add(30 * time.Second)) {
		t.Errorf("expected 30s backoff, got %s", stored.NextRetryAt.Sub(now))
	}

	// Not due yet.
	if _, err := dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue() error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("delivery retried before its backoff, calls=%d", calls)
	}

	clock = now.Add(31 * time.Second)
	_, _ = dispatcher.DispatchDue(context.Background())
	stored = storedDelivery(t, store)
	if stored.RetryCount != 2 || !stored.NextRetryAt.Equal(clock.Add(2*time.Minute)) {
		t.Fatalf("expected second backoff of 2m, got %+v", stored)
	}

	clock = clock.Add(3 * time.Minute)
	_, _ = dispatcher.DispatchDue(context.Background())
	stored = storedDelivery(t, store)
	if stored.Status != domain.DeliveryStatusExhausted || stored.RetryCount != 3 {
		t.Errorf("expected EXHAUSTED after 3 failures, got %+v", stored)
	}

	clock = clock.Add(2 * time.Hour)
	_, _ = dispatcher.DispatchDue(context.Background())
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("exhausted delivery was sent again, calls=%d", calls)
	}
}

func TestWebhookDispatcher_UnreachableEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := memory.NewStore()
	newDelivery(t, store, url, time.Now())

	dispatcher := NewWebhookDispatcher(store.Webhooks(), nil, "secret", time.Second, time.Minute, 5)
	if n, err := dispatcher.DispatchDue(context.Background()); err != nil || n != 0 {
		t.Fatalf("DispatchDue() = %d, %v", n, err)
	}

	stored := storedDelivery(t, store)
	if stored.Status != domain.DeliveryStatusFailed || stored.ResponseCode != 0 || stored.ResponseBody == "" {
		t.Errorf("expected a recorded transport failure, got %+v", stored)
	}
}

package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/newrelic/go-agent/v3/newrelic"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

// Webhook request headers.
const (
	HeaderWebhookID        = "X-Webhook-Id"
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

const (
	maxWebhookResponse = 1000
	webhookBatch       = 50
)

// webhookBackoff is indexed by the number of failed attempts so far.
var webhookBackoff = []time.Duration{0, 30 * time.Second, 2 * time.Minute, 10 * time.Minute, time.Hour}

// SignWebhook returns the hex HMAC-SHA256 of payload and timestamp joined by
// a dot. Receivers recompute it with the shared secret.
func SignWebhook(secret, payload, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload + "." + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookDispatcher POSTs due deliveries to the merchant endpoint and
// schedules retries with backoff until maxRetries.
type WebhookDispatcher struct {
	repo       repository.WebhookRepository
	client     *http.Client
	nrApp      *newrelic.Application
	secret     string
	interval   time.Duration
	lease      time.Duration
	maxRetries int
	now        func() time.Time
}

// NewWebhookDispatcher creates a new WebhookDispatcher. nrApp may be nil.
func NewWebhookDispatcher(repo repository.WebhookRepository, nrApp *newrelic.Application, secret string, timeout, interval time.Duration, maxRetries int) *WebhookDispatcher {
	return &WebhookDispatcher{
		repo: repo,
		client: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(nil),
		},
		nrApp:      nrApp,
		secret:     secret,
		interval:   interval,
		lease:      2*timeout + time.Second,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Run dispatches due deliveries on every interval until ctx is cancelled.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Printf("Webhook dispatcher started: interval=%s", d.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Webhook dispatcher stopped")
			return
		case <-ticker.C:
			if n, err := d.DispatchDue(ctx); err != nil {
				log.Printf("Error dispatching webhooks: %v", err)
			} else if n > 0 {
				log.Printf("Delivered %d webhooks", n)
			}
		}
	}
}

// DispatchDue attempts every due delivery once and returns how many were
// delivered.
func (d *WebhookDispatcher) DispatchDue(ctx context.Context) (int, error) {
	if d.nrApp != nil {
		txn := d.nrApp.StartTransaction("webhook-dispatch")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	deliveries, err := d.repo.ClaimDue(ctx, d.now(), d.lease, webhookBatch)
	if err != nil {
		return 0, err
	}

	var delivered int
	for _, delivery := range deliveries {
		d.attempt(ctx, delivery)
		if err := d.repo.Update(ctx, delivery); err != nil {
			return delivered, fmt.Errorf("update delivery %s: %w", delivery.ID, err)
		}
		if delivery.Status == domain.DeliveryStatusDelivered {
			delivered++
		}
	}
	return delivered, nil
}

// attempt sends one delivery and records the outcome on it.
func (d *WebhookDispatcher) attempt(ctx context.Context, delivery *domain.WebhookDelivery) {
	log.Printf("Dispatching webhook: delivery=%s url=%s attempt=%d", delivery.ID, delivery.TargetURL, delivery.RetryCount+1)

	delivery.LastAttemptAt = d.now()
	code, body, err := d.post(ctx, delivery)
	delivery.ResponseCode = code
	delivery.ResponseBody = body

	switch {
	case err != nil:
		d.fail(delivery, err.Error())
	case code < 200 || code >= 300:
		d.fail(delivery, fmt.Sprintf("non-2xx response: %d", code))
	default:
		delivery.Status = domain.DeliveryStatusDelivered
		log.Printf("Webhook delivered: delivery=%s", delivery.ID)
	}
}

func (d *WebhookDispatcher) post(ctx context.Context, delivery *domain.WebhookDelivery) (int, string, error) {
	timestamp := strconv.FormatInt(d.now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.TargetURL, strings.NewReader(delivery.Payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookID, delivery.ID)
	req.Header.Set(HeaderWebhookTimestamp, timestamp)
	req.Header.Set(HeaderWebhookSignature, SignWebhook(d.secret, delivery.Payload, timestamp))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (d *WebhookDispatcher) fail(delivery *domain.WebhookDelivery, reason string) {
	delivery.RetryCount++
	if delivery.ResponseBody == "" {
		delivery.ResponseBody = truncateText(reason, maxWebhookResponse)
	}

	if delivery.RetryCount >= d.maxRetries {
		delivery.Status = domain.DeliveryStatusExhausted
		log.Printf("Error: webhook exhausted retries: delivery=%s reason=%s", delivery.ID, reason)
		return
	}

	delivery.Status = domain.DeliveryStatusFailed
	delivery.NextRetryAt = d.now().Add(webhookBackoff[min(delivery.RetryCount, len(webhookBackoff)-1)])
	log.Printf("Warning: webhook will be retried: delivery=%s next=%s reason=%s", delivery.ID, delivery.NextRetryAt.Format(time.RFC3339), reason)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

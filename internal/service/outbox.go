package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"checkout/internal/domain"
	"checkout/internal/repository"
)

const defaultOutboxBatch = 100

// paymentEvent is the outbox payload of a payment transition. It never
// carries card data beyond what the payment already stores.
type paymentEvent struct {
	PaymentID         string `json:"paymentId"`
	OrderID           string `json:"orderId"`
	Status            string `json:"status"`
	PreviousStatus    string `json:"previousStatus,omitempty"`
	Amount            string `json:"amount"`
	RefundedAmount    string `json:"refundedAmount,omitempty"`
	Currency          string `json:"currency"`
	Provider          string `json:"provider,omitempty"`
	ProviderReference string `json:"providerReference,omitempty"`
	Reason            string `json:"reason,omitempty"`
	OccurredAt        string `json:"occurredAt"`
}

// publishPaymentEvent writes the event for payment's new status into the
// outbox of tx, so it commits or rolls back with the transition.
func publishPaymentEvent(ctx context.Context, tx repository.Store, payment *domain.Payment, from domain.PaymentStatus, reason string, now time.Time) error {
	eventType, ok := domain.EventTypeFor(payment.Status)
	if !ok {
		return nil
	}

	body := paymentEvent{
		PaymentID:         payment.ID,
		OrderID:           payment.OrderID,
		Status:            string(payment.Status),
		PreviousStatus:    string(from),
		Amount:            payment.Amount.StringFixed(2),
		Currency:          payment.Currency,
		Provider:          payment.ProviderName,
		ProviderReference: payment.ProviderReference,
		Reason:            reason,
		OccurredAt:        now.UTC().Format(time.RFC3339),
	}
	if eventType == domain.EventPaymentRefunded {
		body.RefundedAmount = payment.RefundedAmount.StringFixed(2)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	return tx.Outbox().Create(ctx, &domain.OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: domain.AggregatePayment,
		AggregateID:   payment.ID,
		EventType:     eventType,
		Payload:       string(payload),
		Status:        domain.OutboxStatusNew,
		CreatedAt:     now,
	})
}

// EventHandler reacts to outbox events. Handle runs inside the processor's
// transaction and may write through tx.
type EventHandler interface {
	CanHandle(eventType domain.EventType) bool
	Handle(ctx context.Context, tx repository.Store, event *domain.OutboxEvent) error
}

// OutboxProcessor hands committed outbox events to the registered handlers.
// An event that fails is retried on later runs until maxRetries, then marked
// FAILED.
type OutboxProcessor struct {
	store      repository.Store
	handlers   []EventHandler
	interval   time.Duration
	batchSize  int
	maxRetries int
	now        func() time.Time
}

// NewOutboxProcessor creates a new OutboxProcessor.
func NewOutboxProcessor(store repository.Store, interval time.Duration, batchSize, maxRetries int, handlers ...EventHandler) *OutboxProcessor {
	if batchSize <= 0 {
		batchSize = defaultOutboxBatch
	}
	return &OutboxProcessor{
		store:      store,
		handlers:   handlers,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Run processes pending events on every interval until ctx is cancelled.
func (p *OutboxProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("Outbox processor started: interval=%s handlers=%d", p.interval, len(p.handlers))

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox processor stopped")
			return
		case <-ticker.C:
			if n, err := p.ProcessPending(ctx); err != nil {
				log.Printf("Error processing outbox: %v", err)
			} else if n > 0 {
				log.Printf("Processed %d outbox events", n)
			}
		}
	}
}

// ProcessPending runs one batch and returns how many events were sent.
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	var sent int

	err := p.store.InTx(ctx, func(tx repository.Store) error {
		events, err := tx.Outbox().ListPending(ctx, p.maxRetries, p.batchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := p.handle(ctx, tx, event); err != nil {
				event.RetryCount++
				event.LastError = err.Error()
				if event.RetryCount >= p.maxRetries {
					event.Status = domain.OutboxStatusFailed
					log.Printf("Error: outbox event gave up: event=%s type=%s err=%v", event.ID, event.EventType, err)
				} else {
					log.Printf("Warning: outbox event failed: event=%s type=%s retry=%d err=%v", event.ID, event.EventType, event.RetryCount, err)
				}
			} else {
				event.Status = domain.OutboxStatusSent
				event.ProcessedAt = p.now()
				sent++
			}

			if err := tx.Outbox().Update(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})

	return sent, err
}

func (p *OutboxProcessor) handle(ctx context.Context, tx repository.Store, event *domain.OutboxEvent) error {
	for _, h := range p.handlers {
		if !h.CanHandle(event.EventType) {
			continue
		}
		if err := h.Handle(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

// webhookPayload is the body POSTed to the merchant.
type webhookPayload struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// WebhookEventHandler turns payment events into webhook deliveries for the
// configured merchant endpoint. With no endpoint it accepts events and does
// nothing.
type WebhookEventHandler struct {
	targetURL string
	now       func() time.Time
}

// NewWebhookEventHandler creates a handler delivering to targetURL.
func NewWebhookEventHandler(targetURL string) *WebhookEventHandler {
	return &WebhookEventHandler{targetURL: targetURL, now: time.Now}
}

// CanHandle reports whether the event is forwarded to merchants.
func (h *WebhookEventHandler) CanHandle(eventType domain.EventType) bool {
	switch eventType {
	case domain.EventPaymentCreated,
		domain.EventPaymentAuthorized,
		domain.EventPaymentCaptured,
		domain.EventPaymentFailed,
		domain.EventPaymentCancelled,
		domain.EventPaymentRefunded:
		return true
	default:
		return false
	}
}

// Handle schedules a delivery for immediate dispatch.
func (h *WebhookEventHandler) Handle(ctx context.Context, tx repository.Store, event *domain.OutboxEvent) error {
	if h.targetURL == "" {
		return nil
	}

	now := h.now()
	payload, err := json.Marshal(webhookPayload{
		EventID:   event.ID,
		EventType: string(event.EventType),
		Data:      json.RawMessage(event.Payload),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	return tx.Webhooks().Create(ctx, &domain.WebhookDelivery{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		EventType:   event.EventType,
		TargetURL:   h.targetURL,
		Payload:     string(payload),
		Status:      domain.DeliveryStatusPending,
		NextRetryAt: now,
		CreatedAt:   now,
	})
}

package domain

import "time"

// EventType names a payment event published through the outbox.
type EventType string

const (
	EventPaymentCreated    EventType = "PaymentCreated"
	EventPaymentAuthorized EventType = "PaymentAuthorized"
	EventPaymentCaptured   EventType = "PaymentCaptured"
	EventPaymentFailed     EventType = "PaymentFailed"
	EventPaymentCancelled  EventType = "PaymentCancelled"
	EventPaymentRefunded   EventType = "PaymentRefunded"
)

// EventTypeFor returns the event published when a payment enters status.
func EventTypeFor(status PaymentStatus) (EventType, bool) {
	switch status {
	case PaymentStatusCreated:
		return EventPaymentCreated, true
	case PaymentStatusAuthorized:
		return EventPaymentAuthorized, true
	case PaymentStatusCaptured:
		return EventPaymentCaptured, true
	case PaymentStatusFailed:
		return EventPaymentFailed, true
	case PaymentStatusCancelled:
		return EventPaymentCancelled, true
	case PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return EventPaymentRefunded, true
	default:
		return "", false
	}
}

// OutboxStatus is the processing state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusNew    OutboxStatus = "NEW"
	OutboxStatusSent   OutboxStatus = "SENT"
	OutboxStatusFailed OutboxStatus = "FAILED"
)

// AggregatePayment is the only aggregate that publishes events.
const AggregatePayment = "Payment"

// OutboxEvent is written in the same transaction as the state change it
// describes and handed to event handlers afterwards.
type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     EventType
	Payload       string // JSON
	Status        OutboxStatus
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
	ProcessedAt   time.Time
}

// DeliveryStatus is the state of a webhook delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"    // Will be retried.
	DeliveryStatusExhausted DeliveryStatus = "EXHAUSTED" // Out of retries.
)

// WebhookDelivery is one outbound POST of an event to the merchant endpoint.
type WebhookDelivery struct {
	ID            string
	EventID       string
	EventType     EventType
	TargetURL     string
	Payload       string // JSON
	Status        DeliveryStatus
	RetryCount    int
	ResponseCode  int
	ResponseBody  string
	NextRetryAt   time.Time
	LastAttemptAt time.Time
	CreatedAt     time.Time
}

// IsDue reports whether the delivery should be attempted at now.
func (d *WebhookDelivery) IsDue(now time.Time) bool {
	if d.Status != DeliveryStatusPending && d.Status != DeliveryStatusFailed {
		return false
	}
	return !d.NextRetryAt.After(now)
}

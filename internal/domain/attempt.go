package domain

import "time"

// Operation names a protocol exchange recorded as an attempt.
type Operation string

const (
	OperationAuthorize Operation = "AUTHORIZE"
	OperationChallenge Operation = "CHALLENGE"
	OperationCancel    Operation = "CANCEL"
	OperationRefund    Operation = "REFUND"
)

// AttemptStatus is the result of a single attempt.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "SUCCESS"
	AttemptStatusFailure AttemptStatus = "FAILURE"
)

// Attempt is an audit row written for every protocol exchange and refund.
type Attempt struct {
	ID        string
	PaymentID string
	Provider  string
	Operation Operation
	Status    AttemptStatus
	ErrorCode string
	Message   string
	LatencyMs int64
	CreatedAt time.Time
}

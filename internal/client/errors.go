package client

import (
	"fmt"

	"checkout/internal/apperr"
)

// ErrInvalidPaymentID is returned when a call names no payment.
var ErrInvalidPaymentID = apperr.New(apperr.ErrValidation, "payment id is required")

// ErrInFlight is returned when a state-changing call for the same payment
// is already running on this client.
var ErrInFlight = apperr.New(apperr.ErrConflict, "a request for this payment is already in flight")

// Error is a failed protocol call. It unwraps to one of the apperr kinds.
type Error struct {
	Kind          error
	Status        int    // HTTP status, 0 for transport failures.
	Code          string // Server error code, if any.
	Message       string
	CorrelationID string

	// Indeterminate is set when a state-changing request may have reached
	// the server but no answer was read. Re-read the payment before
	// retrying.
	Indeterminate bool
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("checkout: %d %s", e.Status, e.Message)
	}
	return "checkout: " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

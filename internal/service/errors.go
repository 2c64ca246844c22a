package service

import "checkout/internal/apperr"

var (
	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = apperr.New(apperr.ErrValidation, "invalid payment id")

	// ErrPaymentNotAuthorizable is returned when authorizing a payment that is not CREATED.
	ErrPaymentNotAuthorizable = apperr.New(apperr.ErrConflict, "payment is not awaiting authorization")

	// ErrPaymentNotAwaitingChallenge is returned when verifying a payment with no pending challenge.
	ErrPaymentNotAwaitingChallenge = apperr.New(apperr.ErrConflict, "payment is not awaiting a challenge")

	// ErrPaymentNotCancellable is returned when cancelling a terminal payment.
	ErrPaymentNotCancellable = apperr.New(apperr.ErrConflict, "payment cannot be cancelled in current state")

	// ErrPaymentBusy is returned when another request holds the payment's lock.
	ErrPaymentBusy = apperr.New(apperr.ErrConflict, "payment is being processed by another request")

	// ErrReceiptUnavailable is returned when requesting a receipt for a payment that was not captured.
	ErrReceiptUnavailable = apperr.New(apperr.ErrConflict, "receipt is only available for captured payments")

	// ErrPaymentNotRefundable is returned when refunding a payment that was not captured or is fully refunded.
	ErrPaymentNotRefundable = apperr.New(apperr.ErrConflict, "payment cannot be refunded in current state")

	// ErrRefundExceedsAmount is returned when a refund is larger than what is left to refund.
	ErrRefundExceedsAmount = apperr.New(apperr.ErrValidation, "refund amount exceeds the refundable amount")

	// ErrLockUnavailable is returned when the lock store cannot be reached.
	ErrLockUnavailable = apperr.New(apperr.ErrService, "payment lock unavailable")
)

// Challenge failure codes reported in VerifyResult.Code.
const (
	CodeInvalidOTP  = "INVALID_OTP"
	CodeMaxAttempts = "MAX_ATTEMPTS"
	CodeExpired     = "EXPIRED"
)

// Attempt error codes.
const (
	codeDeclined  = "DECLINED"
	codeCancelled = "CANCELLED"
)

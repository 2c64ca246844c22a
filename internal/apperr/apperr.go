// Package apperr classifies errors into the kinds the payment protocol
// distinguishes. Every layer declares its own sentinels with New so that
// callers can match either the specific error or its kind with errors.Is.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed input. It never reaches the state machine.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown identity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a violated state-machine guard.
	ErrConflict = errors.New("conflict")

	// ErrDeclined marks an expected business failure such as a declined card.
	ErrDeclined = errors.New("declined")

	// ErrService marks a transport or server fault.
	ErrService = errors.New("service error")
)

type classified struct {
	kind error
	msg  string
}

func (e *classified) Error() string { return e.msg }
func (e *classified) Unwrap() error { return e.kind }

// New returns an error with the given message that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &classified{kind: kind, msg: msg}
}

// Kind returns a stable machine-readable name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return "validation_error"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.Is(err, ErrDeclined):
		return "declined"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, ErrService):
		return "service_error"

	default:
		return "internal"
	}
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrConflict):
		return http.StatusConflict

	case errors.Is(err, ErrDeclined):
		return http.StatusPaymentRequired

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, ErrService):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse of HTTPStatus used by protocol clients.
func FromHTTPStatus(code int) error {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrValidation
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusPaymentRequired:
		return ErrDeclined
	default:
		return ErrService
	}
}

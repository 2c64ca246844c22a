// Package validation holds the structural checks run on card, challenge and
// order input before anything is sent to, or accepted by, the payment server.
// The checks are pure; the server re-runs every one of them.
package validation

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"checkout/internal/apperr"
)

const (
	minCardDigits       = 13
	maxCardDigits       = 19
	challengeCodeLen    = 6
	maxHolderLen        = 100
	maxProductNameLen   = 500
	maxRefundReasonLen  = 500
	amountDecimalPlaces = 2
)

var (
	// ErrInvalidCardNumber is returned when the PAN is not 13-19 digits.
	ErrInvalidCardNumber = apperr.New(apperr.ErrValidation, "invalid card number")

	// ErrInvalidCardHolder is returned when the holder name is empty or too long.
	ErrInvalidCardHolder = apperr.New(apperr.ErrValidation, "invalid card holder")

	// ErrInvalidExpiry is returned when the expiry month or year is malformed.
	ErrInvalidExpiry = apperr.New(apperr.ErrValidation, "invalid expiry date")

	// ErrInvalidCVV is returned when the CVV is not 3-4 digits.
	ErrInvalidCVV = apperr.New(apperr.ErrValidation, "invalid cvv")

	// ErrInvalidChallengeCode is returned when the one-time code is not exactly 6 digits.
	ErrInvalidChallengeCode = apperr.New(apperr.ErrValidation, "challenge code must be exactly 6 digits")

	// ErrInvalidAmount is returned when the amount is not positive or has sub-cent precision.
	ErrInvalidAmount = apperr.New(apperr.ErrValidation, "amount must be positive with at most 2 decimal places")

	// ErrInvalidEmail is returned when the buyer email is malformed.
	ErrInvalidEmail = apperr.New(apperr.ErrValidation, "invalid buyer email")

	// ErrInvalidProductName is returned when the product name is empty or too long.
	ErrInvalidProductName = apperr.New(apperr.ErrValidation, "invalid product name")

	// ErrInvalidRefundReason is returned when the refund reason is too long.
	ErrInvalidRefundReason = apperr.New(apperr.ErrValidation, "refund reason must be at most 500 characters")
)

var validate = validator.New()

// NormalizeCardNumber removes the grouping spaces and dashes users type.
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// IsValidCardNumber reports whether number is 13-19 ASCII digits.
func IsValidCardNumber(number string) bool {
	return len(number) >= minCardDigits && len(number) <= maxCardDigits && isDigits(number)
}

// IsValidExpiry reports whether month is 1-12 and year is a two or four digit
// year. Cards are not checked against the current date.
func IsValidExpiry(month, year string) bool {
	if !isDigits(month) || len(month) > 2 {
		return false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}

	if !isDigits(year) {
		return false
	}
	switch len(year) {
	case 2:
		return true
	case 4:
		y, err := strconv.Atoi(year)
		return err == nil && y >= 2000 && y <= 2099
	default:
		return false
	}
}

// IsValidCvv reports whether cvv is 3 or 4 digits.
func IsValidCvv(cvv string) bool {
	return (len(cvv) == 3 || len(cvv) == 4) && isDigits(cvv)
}

// IsValidChallengeCode reports whether code is exactly 6 digits.
func IsValidChallengeCode(code string) bool {
	return len(code) == challengeCodeLen && isDigits(code)
}

// IsValidHolder reports whether the card holder name is usable.
func IsValidHolder(holder string) bool {
	h := strings.TrimSpace(holder)
	return h != "" && len(h) <= maxHolderLen
}

// IsValidEmail reports whether email is a well-formed address.
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// IsValidAmount reports whether amount is positive and representable in minor units.
func IsValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(amountDecimalPlaces))
}

// CheckCard validates all card fields and returns the first failure.
func CheckCard(number, holder, expiryMonth, expiryYear, cvv string) error {
	switch {
	case !IsValidCardNumber(number):
		return ErrInvalidCardNumber
	case !IsValidHolder(holder):
		return ErrInvalidCardHolder
	case !IsValidExpiry(expiryMonth, expiryYear):
		return ErrInvalidExpiry
	case !IsValidCvv(cvv):
		return ErrInvalidCVV
	}
	return nil
}

// CheckOrder validates the inputs of an order before it is created.
func CheckOrder(productName string, amount decimal.Decimal, email string) error {
	name := strings.TrimSpace(productName)
	switch {
	case name == "" || len(name) > maxProductNameLen:
		return ErrInvalidProductName
	case !IsValidAmount(amount):
		return ErrInvalidAmount
	case !IsValidEmail(email):
		return ErrInvalidEmail
	}
	return nil
}

// CheckChallengeCode validates a one-time code.
func CheckChallengeCode(code string) error {
	if !IsValidChallengeCode(code) {
		return ErrInvalidChallengeCode
	}
	return nil
}

// CheckRefund validates an optional refund amount and reason.
func CheckRefund(amount *decimal.Decimal, reason string) error {
	if amount != nil && !IsValidAmount(*amount) {
		return ErrInvalidAmount
	}
	if len([]rune(reason)) > maxRefundReasonLen {
		return ErrInvalidRefundReason
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package payment

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindNotFound           Kind = "account_not_found"
	KindValidation         Kind = "validation_failed"
	KindDuplicateReference Kind = "duplicate_reference"
	KindRateLimited        Kind = "rate_limited"
	KindPaymentFailed      Kind = "payment_failed"
	KindInternal           Kind = "internal_error"
	KindUnauthorized       Kind = "unauthorized"
)

// Error is the structured outcome of a rejected engine call.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	ResetTime  time.Time
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if len(e.Violations) > 0 {
		msg += " (" + strings.Join(e.Violations, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(violations []string) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid payment request.", Violations: violations}
}

func NewDuplicateReferenceError(reference string, err error) *Error {
	return &Error{
		Kind:    KindDuplicateReference,
		Message: fmt.Sprintf("Transaction reference %q has already been used.", reference),
		Err:     err,
	}
}

func NewRateLimitedError(resetTime time.Time) *Error {
	return &Error{
		Kind:      KindRateLimited,
		Message:   "Too many payment requests, try again after the reset time.",
		ResetTime: resetTime,
	}
}

func NewPaymentFailedError(err error) *Error {
	return &Error{
		Kind:    KindPaymentFailed,
		Message: "Payment failed. Insufficient balance or invalid account.",
		Err:     err,
	}
}

func NewNotFoundError(accountNumber string, err error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("Account %s not found.", accountNumber),
		Err:     err,
	}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error.", Err: err}
}

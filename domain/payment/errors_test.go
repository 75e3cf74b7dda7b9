package payment

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("insufficient funds")
	err := NewPaymentFailedError(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected payment error to wrap its cause")
	}

	var perr *Error
	if !errors.As(error(err), &perr) || perr.Kind != KindPaymentFailed {
		t.Fatalf("expected errors.As to find a payment_failed error, got %v", err)
	}
}

func TestValidationErrorListsEveryViolation(t *testing.T) {
	err := NewValidationError([]string{"accountNumber is required", "amount must be greater than 0"})
	msg := err.Error()
	if !strings.Contains(msg, "accountNumber is required") || !strings.Contains(msg, "amount must be greater than 0") {
		t.Fatalf("expected both violations in message, got %q", msg)
	}
}

package infra

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTimeout   = errors.New("timeout error")
	ErrNetwork   = errors.New("network error")
	ErrThrottled = errors.New("throttled")
)

func NewTimeoutError(details string) error {
	return fmt.Errorf("%w: %s", ErrTimeout, details)
}

func NewNetworkError(details string) error {
	return fmt.Errorf("%w: %s", ErrNetwork, details)
}

// ThrottledError is a 429 from an upstream rate budget. RetryAfter is zero
// when the upstream did not say when its budget resets.
type ThrottledError struct {
	Details    string
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", ErrThrottled, e.Details, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", ErrThrottled, e.Details)
}

func (e *ThrottledError) Unwrap() error { return ErrThrottled }

// NewThrottledError reads retryAfter as a Retry-After header in delay-seconds form.
func NewThrottledError(details, retryAfter string) error {
	err := &ThrottledError{Details: details}
	if seconds, convErr := strconv.Atoi(strings.TrimSpace(retryAfter)); convErr == nil && seconds > 0 {
		err.RetryAfter = time.Duration(seconds) * time.Second
	}
	return err
}

// RetryAfter returns the wait an upstream asked for, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var throttled *ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		return throttled.RetryAfter, true
	}
	return 0, false
}

// IsRetriable reports timeouts, 5xx and 429 responses.
func IsRetriable(err error) bool {
	return err != nil && (errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrThrottled))
}

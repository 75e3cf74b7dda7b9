package payment

import (
	"time"

	"github.com/radlee/payments-api/domain/ratelimit"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Meta exposes the shared rate budget so callers can self-throttle.
type Meta struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

func NewMeta(b ratelimit.Budget) Meta {
	return Meta{Limit: b.Limit, Remaining: b.Remaining, ResetTime: b.ResetTime}
}

type Envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Meta       Meta   `json:"meta"`
}

// ErrorData is the data block of an error envelope.
type ErrorData struct {
	Kind       Kind       `json:"kind"`
	Violations []string   `json:"violations,omitempty"`
	ResetTime  *time.Time `json:"resetTime,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

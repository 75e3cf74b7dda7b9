package protocols

import (
	"context"

	"github.com/radlee/payments-api/domain/payment"
)

// EventPublisher hands off completed payments. Implementations must not block the caller.
type EventPublisher interface {
	PaymentCompleted(ctx context.Context, event payment.CompletedEvent)
}

// EventSink delivers a single event to a downstream store or broker.
type EventSink interface {
	Write(ctx context.Context, event payment.CompletedEvent) error
	Close(ctx context.Context) error
}

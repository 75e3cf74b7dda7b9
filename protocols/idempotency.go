package protocols

import (
	"context"
	"errors"
)

var (
	ErrReferenceUsed     = errors.New("transaction reference has already been used")
	ErrReferenceInFlight = errors.New("transaction reference is already being processed")
)

// IdempotencyGateway guards transaction references against a second debit.
// ReserveReference must reserve-or-reject in a single step and return
// ErrReferenceUsed or ErrReferenceInFlight when the reference is taken.
type IdempotencyGateway interface {
	ReserveReference(ctx context.Context, reference string) error
	MarkSuccess(ctx context.Context, reference string) error
	MarkFailure(ctx context.Context, reference string) error
	HasBeenUsed(ctx context.Context, reference string) (bool, error)
}

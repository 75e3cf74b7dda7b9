package payment

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/account"
	domain "github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/domain/ratelimit"
	"github.com/radlee/payments-api/protocols"
)

const tracerName = "payments-api/payment"

func NewEngine(
	ledger protocols.Ledger,
	idempotencyGateway protocols.IdempotencyGateway,
	rateLimiter protocols.RateLimiter,
	publisher protocols.EventPublisher,
	clock protocols.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		ledger:             ledger,
		idempotencyGateway: idempotencyGateway,
		rateLimiter:        rateLimiter,
		publisher:          publisher,
		clock:              clock,
		logger:             logger,
		validate:           newValidator(),
	}
}

// MakePayment runs one payment attempt to a terminal outcome. Every rejection
// is a *domain.Error; a reference is only consumed by a committed debit.
func (e *Engine) MakePayment(ctx context.Context, req domain.Request) (*domain.Receipt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "MakePayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.account_number", req.AccountNumber),
		attribute.String("payment.transaction_reference", req.TransactionReference),
	)

	receipt, err := e.makePayment(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) makePayment(ctx context.Context, req domain.Request) (*domain.Receipt, error) {
	if violations := validate(e.validate, req); len(violations) > 0 {
		return nil, domain.NewValidationError(violations)
	}

	logger := e.logger.With(
		zap.String("account_number", req.AccountNumber),
		zap.String("transaction_reference", req.TransactionReference),
	)

	if err := e.idempotencyGateway.ReserveReference(ctx, req.TransactionReference); err != nil {
		if errors.Is(err, protocols.ErrReferenceUsed) || errors.Is(err, protocols.ErrReferenceInFlight) {
			logger.Info("Rejected duplicate transaction reference", zap.Error(err))
			return nil, domain.NewDuplicateReferenceError(req.TransactionReference, err)
		}
		logger.Error("Failed to reserve transaction reference", zap.Error(err))
		return nil, domain.NewInternalError(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := e.idempotencyGateway.MarkFailure(context.WithoutCancel(ctx), req.TransactionReference); err != nil {
			logger.Error("Failed to release transaction reference", zap.Error(err))
		}
	}()

	slot, ok := e.rateLimiter.TryConsume()
	if !ok {
		logger.Warn("Rate budget exhausted", zap.Time("reset_time", slot.ResetTime))
		return nil, domain.NewRateLimitedError(slot.ResetTime)
	}

	result, err := e.ledger.Debit(req.AccountNumber, req.Amount)
	if err != nil {
		e.rateLimiter.Release(slot)
		if errors.Is(err, account.ErrAccountNotFound) || errors.Is(err, account.ErrInsufficientFunds) || errors.Is(err, account.ErrInvalidAmount) {
			logger.Info("Payment failed", zap.Error(err))
			return nil, domain.NewPaymentFailedError(err)
		}
		logger.Error("Ledger debit failed", zap.Error(err))
		return nil, domain.NewInternalError(err)
	}

	// The debit is final from here on; a failure to record the reference
	// leaves it reserved, which still blocks a replay.
	committed = true
	budget := e.rateLimiter.Commit(slot)
	if err := e.idempotencyGateway.MarkSuccess(context.WithoutCancel(ctx), req.TransactionReference); err != nil {
		logger.Error("Failed to mark transaction reference as used", zap.Error(err))
	}

	receipt := e.receipt(req, result)
	e.publisher.PaymentCompleted(ctx, domain.NewCompletedEvent(uuid.NewString(), *receipt))

	logger.Info("Payment successful",
		zap.String("amount", req.Amount.String()),
		zap.String("new_balance", result.NewBalance.String()),
		zap.Int("rate_remaining", budget.Remaining),
	)
	return receipt, nil
}

func (e *Engine) receipt(req domain.Request, result *account.PaymentResult) *domain.Receipt {
	receipt := &domain.Receipt{
		Transaction: domain.Transaction{
			AccountNumber:        result.AccountNumber,
			TransactionReference: req.TransactionReference,
			Amount:               req.Amount,
			Currency:             req.Currency,
			NewBalance:           result.NewBalance,
			TransactionTime:      e.clock.Now().UTC(),
		},
	}
	// Holder names are immutable seed data, so a lookup after the debit is consistent.
	if acc, err := e.ledger.GetAccount(result.AccountNumber); err == nil {
		receipt.AccountHolder = domain.AccountHolder{Name: acc.Name, Surname: acc.Surname}
	}
	return receipt
}

// Budget returns the current rate budget for response metadata.
func (e *Engine) Budget() ratelimit.Budget {
	return e.rateLimiter.Snapshot()
}

type Engine struct {
	ledger             protocols.Ledger
	idempotencyGateway protocols.IdempotencyGateway
	rateLimiter        protocols.RateLimiter
	publisher          protocols.EventPublisher
	clock              protocols.Clock
	logger             *zap.Logger
	validate           *validator.Validate
}

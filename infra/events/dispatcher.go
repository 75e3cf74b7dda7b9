package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
	"github.com/radlee/payments-api/protocols"
)

const DEFAULT_BUFFER = 256

const sinkTimeout = 10 * time.Second

// Dispatcher fans completed payments out to sinks from a single worker so the
// payment path never waits on a broker or database.
type Dispatcher struct {
	queue   chan payment.CompletedEvent
	sinks   []protocols.EventSink
	logger  *zap.Logger
	mutex   sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

func NewDispatcher(buffer int, logger *zap.Logger, sinks ...protocols.EventSink) *Dispatcher {
	if buffer <= 0 {
		buffer = DEFAULT_BUFFER
	}
	d := &Dispatcher{
		queue:  make(chan payment.CompletedEvent, buffer),
		sinks:  sinks,
		logger: logger.With(zap.String("component", "events")),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

// PaymentCompleted enqueues the event, dropping it when the buffer is full.
func (d *Dispatcher) PaymentCompleted(_ context.Context, event payment.CompletedEvent) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("Event buffer full, dropping payment event",
			zap.String("event_id", event.EventID),
			zap.String("transaction_reference", event.TransactionReference),
		)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for event := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := sink.Write(ctx, event); err != nil {
				d.logger.Error("Failed to deliver payment event",
					zap.String("event_id", event.EventID),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}

// Close drains queued events and closes every sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mutex.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, sink := range d.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop discards every event.
type Noop struct{}

func (Noop) PaymentCompleted(context.Context, payment.CompletedEvent) {}

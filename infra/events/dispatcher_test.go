package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radlee/payments-api/domain/payment"
)

type mockSink struct {
	mutex    sync.Mutex
	events   []payment.CompletedEvent
	writeErr error
	block    chan struct{}
	closed   bool
}

func (m *mockSink) Write(_ context.Context, event payment.CompletedEvent) error {
	if m.block != nil {
		<-m.block
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events = append(m.events, event)
	return m.writeErr
}

func (m *mockSink) Close(context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) received() []payment.CompletedEvent {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]payment.CompletedEvent(nil), m.events...)
}

func event(id string) payment.CompletedEvent {
	return payment.CompletedEvent{EventID: id, AccountNumber: "123456", TransactionReference: "TX-" + id}
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	first, second := &mockSink{}, &mockSink{writeErr: errors.New("broker down")}
	d := NewDispatcher(8, zap.NewNop(), first, second)

	d.PaymentCompleted(context.Background(), event("1"))
	d.PaymentCompleted(context.Background(), event("2"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	for _, sink := range []*mockSink{first, second} {
		got := sink.received()
		if len(got) != 2 || got[0].EventID != "1" || got[1].EventID != "2" {
			t.Fatalf("expected both events in order, got %+v", got)
		}
		if !sink.closed {
			t.Fatalf("expected sink to be closed")
		}
	}
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &mockSink{block: make(chan struct{})}
	d := NewDispatcher(1, zap.NewNop(), sink)

	// The worker holds the first event inside the blocked sink, the second
	// fills the buffer and the rest are dropped.
	d.PaymentCompleted(context.Background(), event("1"))
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.PaymentCompleted(context.Background(), event("2"))
	d.PaymentCompleted(context.Background(), event("3"))
	d.PaymentCompleted(context.Background(), event("4"))

	if d.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", d.Dropped())
	}

	close(sink.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := sink.received(); len(got) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(got))
	}
}

func TestDispatcherIgnoresEventsAfterClose(t *testing.T) {
	sink := &mockSink{}
	d := NewDispatcher(4, zap.NewNop(), sink)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	d.PaymentCompleted(context.Background(), event("late"))
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if got := sink.received(); len(got) != 0 {
		t.Fatalf("expected no delivery after close, got %d", len(got))
	}
}

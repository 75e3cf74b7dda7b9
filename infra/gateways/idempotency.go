package gateways

import (
	"context"
	"sync"
	"time"

	"github.com/radlee/payments-api/protocols"
)

var (
	ErrReferenceUsed     = protocols.ErrReferenceUsed
	ErrReferenceInFlight = protocols.ErrReferenceInFlight
)

const (
	statusProcessing = "processing"
	statusSuccess    = "success"
)

type IdempotencyGatewayMemory struct {
	mutex      sync.Mutex
	references map[string]*IdempotencyState
	clock      protocols.Clock
	retention  time.Duration
}

type IdempotencyState struct {
	Status    string
	UpdatedAt time.Time
}

// NewIdempotencyGatewayMemory keeps committed references for retention.
// A zero retention keeps them for the life of the process.
func NewIdempotencyGatewayMemory(clock protocols.Clock, retention time.Duration) *IdempotencyGatewayMemory {
	return &IdempotencyGatewayMemory{
		references: make(map[string]*IdempotencyState),
		clock:      clock,
		retention:  retention,
	}
}

func (g *IdempotencyGatewayMemory) ReserveReference(_ context.Context, reference string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if state, exists := g.references[reference]; exists {
		if state.Status == statusSuccess {
			return ErrReferenceUsed
		}
		return ErrReferenceInFlight
	}

	g.references[reference] = &IdempotencyState{
		Status:    statusProcessing,
		UpdatedAt: g.clock.Now(),
	}
	return nil
}

func (g *IdempotencyGatewayMemory) MarkFailure(_ context.Context, reference string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if state, exists := g.references[reference]; exists && state.Status == statusProcessing {
		delete(g.references, reference)
	}
	return nil
}

func (g *IdempotencyGatewayMemory) MarkSuccess(_ context.Context, reference string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.references[reference] = &IdempotencyState{
		Status:    statusSuccess,
		UpdatedAt: g.clock.Now(),
	}
	return nil
}

func (g *IdempotencyGatewayMemory) HasBeenUsed(_ context.Context, reference string) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	state, exists := g.references[reference]
	return exists && state.Status == statusSuccess, nil
}

// Sweep forgets committed references older than the retention window and
// returns how many were dropped.
func (g *IdempotencyGatewayMemory) Sweep(now time.Time) int {
	if g.retention <= 0 {
		return 0
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	dropped := 0
	for reference, state := range g.references {
		if state.Status == statusSuccess && now.Sub(state.UpdatedAt) >= g.retention {
			delete(g.references, reference)
			dropped++
		}
	}
	return dropped
}

func (g *IdempotencyGatewayMemory) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.references)
}

// Run sweeps every interval until ctx is done.
func (g *IdempotencyGatewayMemory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep(g.clock.Now())
		}
	}
}

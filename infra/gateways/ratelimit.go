package gateways

import (
	"context"
	"sync"
	"time"

	"github.com/radlee/payments-api/domain/ratelimit"
	"github.com/radlee/payments-api/protocols"
)

// RateLimiterMemory is a fixed-period budget shared by every caller.
// Remaining only counts committed payments; attempts still running hold an
// in-flight slot, so remaining never rises within a period. Every mutation
// happens under one mutex.
type RateLimiterMemory struct {
	mutex    sync.Mutex
	budget   ratelimit.Budget
	inFlight int
	limit    int
	period   time.Duration
	clock    protocols.Clock
}

func NewRateLimiterMemory(limit int, period time.Duration, clock protocols.Clock) *RateLimiterMemory {
	return &RateLimiterMemory{
		budget: ratelimit.NewBudget(limit, ratelimit.NextBoundary(clock.Now(), period)),
		limit:  limit,
		period: period,
		clock:  clock,
	}
}

func (r *RateLimiterMemory) resetIfDueLocked(now time.Time) bool {
	if !r.budget.Due(now) {
		return false
	}
	r.budget = ratelimit.NewBudget(r.limit, ratelimit.NextBoundary(now, r.period))
	r.inFlight = 0
	return true
}

// ResetIfDue replaces the budget when its reset time has passed.
func (r *RateLimiterMemory) ResetIfDue() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.resetIfDueLocked(r.clock.Now())
}

// TryConsume admits an attempt while committed and in-flight payments leave
// room in the budget. The returned budget identifies the slot's period.
func (r *RateLimiterMemory) TryConsume() (ratelimit.Budget, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.resetIfDueLocked(r.clock.Now())
	if r.budget.Remaining-r.inFlight <= 0 {
		return r.budget, false
	}
	r.inFlight++
	return r.budget, true
}

// Commit charges a slot against the budget. A slot from an earlier period
// is dropped, that period's budget is already gone.
func (r *RateLimiterMemory) Commit(slot ratelimit.Budget) ratelimit.Budget {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.ownsLocked(slot) {
		r.inFlight--
		r.budget.Remaining--
	}
	return r.budget
}

// Release frees the slot of an attempt that did not commit. Remaining is untouched.
func (r *RateLimiterMemory) Release(slot ratelimit.Budget) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.ownsLocked(slot) {
		r.inFlight--
	}
}

func (r *RateLimiterMemory) ownsLocked(slot ratelimit.Budget) bool {
	return slot.ResetTime.Equal(r.budget.ResetTime) && r.inFlight > 0
}

func (r *RateLimiterMemory) Snapshot() ratelimit.Budget {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.resetIfDueLocked(r.clock.Now())
	return r.budget
}

// Run resets the budget in the background so idle periods are reflected
// without waiting for the next request.
func (r *RateLimiterMemory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ResetIfDue()
		}
	}
}

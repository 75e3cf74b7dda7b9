package protocols

import "github.com/radlee/payments-api/domain/ratelimit"

type RateLimiter interface {
	// TryConsume admits one attempt. The returned budget identifies the slot.
	TryConsume() (ratelimit.Budget, bool)
	// Commit charges the slot of a committed payment and returns the budget after it.
	Commit(slot ratelimit.Budget) ratelimit.Budget
	// Release frees the slot of an attempt that did not commit.
	Release(slot ratelimit.Budget)
	Snapshot() ratelimit.Budget
}

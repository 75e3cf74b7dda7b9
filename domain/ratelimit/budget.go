package ratelimit

import "time"

// Budget is the process-wide allowance of payments for the current period.
type Budget struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

func NewBudget(limit int, resetTime time.Time) Budget {
	if limit < 0 {
		limit = 0
	}
	return Budget{Limit: limit, Remaining: limit, ResetTime: resetTime}
}

func (b Budget) Exhausted() bool {
	return b.Remaining <= 0
}

// Due reports whether the budget must be replaced at now.
func (b Budget) Due(now time.Time) bool {
	return !now.Before(b.ResetTime)
}

// NextBoundary returns the end of the period containing now.
func NextBoundary(now time.Time, period time.Duration) time.Time {
	return now.Truncate(period).Add(period)
}

package gateways

import (
	"context"
	"time"
)

type Sleeper struct{}

func NewSleeper() *Sleeper {
	return &Sleeper{}
}

// Sleep waits for duration or until ctx is done.
func (s *Sleeper) Sleep(ctx context.Context, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

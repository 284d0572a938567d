// rate_limiter.go - Rate limiting to stay under the Gemini per-minute quota

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter admits at most `slots` executions at a time and keeps each slot
// occupied for `cooldown` after its execution returns, whether it failed or
// not. Waiters block on the semaphore; nothing polls.
type Limiter struct {
	sem      *semaphore.Weighted
	cooldown time.Duration
}

// NewLimiter creates a new rate limiter
// slots: maximum number of concurrent executions
// cooldown: how long a slot stays held after its execution completes
func NewLimiter(slots int64, cooldown time.Duration) *Limiter {
	if slots < 1 {
		slots = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(slots),
		cooldown: cooldown,
	}
}

// Do waits for a slot, runs fn, then holds the slot for the cooldown before
// releasing it. fn's error is returned unchanged. If ctx ends while waiting for
// admission, fn is not run and ctx.Err() is returned.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.release(ctx)

	return fn()
}

func (l *Limiter) release(ctx context.Context) {
	defer l.sem.Release(1)

	if l.cooldown <= 0 {
		return
	}
	timer := time.NewTimer(l.cooldown)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Cooldown returns the configured post-call hold time.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

package digitalocean

import (
	"context"
	"sync"
	"time"
)

// MinIntervalLimiter spaces calls to an upstream API so that two calls never start
// closer together than the configured interval. Callers block in Wait until their
// slot arrives.
type MinIntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
	now      func() time.Time
}

// NewMinIntervalLimiter creates a limiter; a non-positive interval disables spacing
func NewMinIntervalLimiter(interval time.Duration) *MinIntervalLimiter {
	return &MinIntervalLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Wait blocks until at least interval has elapsed since the previous reserved slot.
// Returns an error if the context is cancelled; the slot is still consumed in that case.
func (l *MinIntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	slot := now
	if !l.lastCall.IsZero() {
		if next := l.lastCall.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	l.lastCall = slot
	l.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LastCall returns the start time of the most recently reserved slot
func (l *MinIntervalLimiter) LastCall() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCall
}

// Interval returns the configured spacing
func (l *MinIntervalLimiter) Interval() time.Duration {
	return l.interval
}

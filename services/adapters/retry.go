package adapters

import (
	"context"
	"time"
)

// RetryConfig controls RetryOnRateLimit
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Multiplier is applied to the delay after each retry
	Multiplier float64
}

// DefaultRetryConfig waits 20s, 40s and 80s before giving up
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  20 * time.Second,
		Multiplier: 2,
	}
}

// Backoff returns the wait before retry number attempt (zero-based)
func (c RetryConfig) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.Multiplier
	}
	return time.Duration(float64(c.BaseDelay) * multiplier)
}

// RetryOnRateLimit runs fn and retries it only when it fails with a RateLimitError.
// Other errors are returned immediately.
func RetryOnRateLimit[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimit(err) || attempt >= cfg.MaxRetries {
			return zero, err
		}

		timer := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

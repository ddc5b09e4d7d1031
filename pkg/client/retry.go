package client

import (
	"context"
	"math"
	"time"

	"github.com/datataps/roomtap/pkg/config"
)

// RetryPolicy defines exponential backoff behavior for transient failures
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NewRetryPolicy creates a retry policy from the run configuration
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay.Std(),
		MaxDelay:     cfg.MaxDelay.Std(),
		Multiplier:   cfg.Multiplier,
	}
}

// Execute runs fn up to MaxAttempts times, backing off between attempts.
// Errors for which shouldRetry returns false are returned immediately.
// When the attempt budget is exhausted the last error is returned as-is so
// the caller sees the final classified failure.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt == rp.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(rp.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// delay computes the backoff for a given zero-based attempt
func (rp *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if rp.MaxDelay > 0 && d > float64(rp.MaxDelay) {
		d = float64(rp.MaxDelay)
	}
	return time.Duration(d)
}

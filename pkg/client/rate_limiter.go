package client

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds outbound calls to a fixed quota per rolling window.
// Calls beyond the quota block in Wait until the window admits capacity;
// they are never dropped.
type RateLimiter struct {
	rate   float64 // tokens per second
	burst  float64 // window quota
	tokens float64
	last   time.Time

	now func() time.Time // injectable clock

	mu sync.Mutex
}

// NewRateLimiter creates a limiter admitting calls requests per window.
// Implemented as a token bucket whose capacity equals the window quota, so a
// fresh limiter admits a full window's worth of calls before throttling.
func NewRateLimiter(calls int, window time.Duration) *RateLimiter {
	quota := float64(calls)
	return &RateLimiter{
		rate:   quota / window.Seconds(),
		burst:  quota,
		tokens: quota,
		last:   time.Now(),
		now:    time.Now,
	}
}

// Allow reports whether a call is admitted immediately, consuming a token
// when it is.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1.0 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a call is admitted or the context is cancelled
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1.0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		deficit := 1.0 - rl.tokens
		wait := time.Duration(deficit / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Tokens returns the currently available capacity
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.tokens
}

// refill adds tokens for elapsed time, capped at the window quota.
// Callers must hold mu.
func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.last).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.last = now
}

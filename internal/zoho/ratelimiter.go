// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding the outbound call rate to one Zoho
// service. Capacity equals the rate, the bucket starts full and refills
// continuously at rate tokens per second.
//
// Acquire holds the mutex while it sleeps, so concurrent callers queue on the
// lock and never observe a stale token count.
type RateLimiter struct {
	mu        sync.Mutex
	rate      float64
	tokens    float64
	updatedAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing callsPerSecond calls per second.
// Non-positive rates are treated as one call per second.
func NewRateLimiter(callsPerSecond float64) *RateLimiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	return &RateLimiter{
		rate:      callsPerSecond,
		tokens:    callsPerSecond,
		updatedAt: time.Now(),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Rate returns the configured calls per second.
func (r *RateLimiter) Rate() float64 {
	return r.rate
}

// Acquire blocks until a token is available and debits it. It returns how long
// the caller slept. When the bucket is short it sleeps exactly
// (1-tokens)/rate and leaves the bucket empty.
//
// If ctx is cancelled during the sleep the token is still consumed and the
// context error is returned.
func (r *RateLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	elapsed := now.Sub(r.updatedAt).Seconds()
	if elapsed > 0 {
		r.tokens = min(r.rate, r.tokens+elapsed*r.rate)
	}
	r.updatedAt = now

	if r.tokens >= 1 {
		r.tokens--
		return 0, nil
	}

	wait := time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
	err := r.sleep(ctx, wait)

	r.tokens = 0
	r.updatedAt = r.now()
	return wait, err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

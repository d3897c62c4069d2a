// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock drives a RateLimiter without real sleeping: sleep advances now.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	err    error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return c.err
}

func newTestLimiter(rate float64, clock *fakeClock) *RateLimiter {
	rl := NewRateLimiter(rate)
	rl.now = clock.Now
	rl.sleep = clock.Sleep
	rl.updatedAt = clock.Now()
	return rl
}

func approxDuration(t *testing.T, got, want time.Duration) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Millisecond {
		t.Errorf("duration = %v, want ~%v", got, want)
	}
}

func TestRateLimiter_BurstWithinRateDoesNotSleep(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(5, clock)

	for i := 0; i < 5; i++ {
		wait, err := rl.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if wait != 0 {
			t.Errorf("Acquire %d waited %v, want 0", i, wait)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", clock.sleeps)
	}
}

func TestRateLimiter_ExcessCallerSleepsForMissingFraction(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(2, clock)

	for i := 0; i < 2; i++ {
		if _, err := rl.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	// Bucket empty: the next caller waits the full 1/rate.
	wait, err := rl.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	approxDuration(t, wait, 500*time.Millisecond)

	// 250ms later half a token has refilled, so the wait is (1-0.5)/2.
	clock.Advance(250 * time.Millisecond)
	wait, err = rl.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	approxDuration(t, wait, 250*time.Millisecond)
}

func TestRateLimiter_RefillIsCappedAtRate(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(3, clock)

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		wait, _ := rl.Acquire(context.Background())
		if wait != 0 {
			t.Fatalf("Acquire %d waited %v", i, wait)
		}
	}
	wait, _ := rl.Acquire(context.Background())
	if wait == 0 {
		t.Fatal("fourth Acquire after long idle should wait; refill must be capped at rate")
	}
}

func TestRateLimiter_SustainedRate(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(1.5, clock)
	start := clock.Now()

	const calls = 31
	for i := 0; i < calls; i++ {
		if _, err := rl.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	// One call rides the initial burst, the other 30 are paced at 1.5/s.
	elapsed := clock.Now().Sub(start)
	if elapsed < 19*time.Second || elapsed > 21*time.Second {
		t.Errorf("31 calls at 1.5/s took %v, want ~20s", elapsed)
	}
}

func TestRateLimiter_CancelledSleepStillConsumesToken(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(1, clock)

	if _, err := rl.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	clock.err = context.Canceled
	_, err := rl.Acquire(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	rl.mu.Lock()
	tokens := rl.tokens
	rl.mu.Unlock()
	if tokens != 0 {
		t.Errorf("tokens = %v after cancelled acquire, want 0", tokens)
	}
}

func TestRateLimiter_ConcurrentCallersSerialize(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(4, clock)
	start := clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rl.Acquire(context.Background())
		}()
	}
	wg.Wait()

	// 4 from the burst, 8 more at 4/s.
	elapsed := clock.Now().Sub(start)
	if elapsed < 1900*time.Millisecond || elapsed > 2100*time.Millisecond {
		t.Errorf("12 concurrent calls at 4/s took %v, want ~2s", elapsed)
	}
}

func TestNewRateLimiter_NonPositiveRate(t *testing.T) {
	if got := NewRateLimiter(0).Rate(); got != 1 {
		t.Errorf("Rate() = %v, want 1", got)
	}
	if got := NewRateLimiter(-3).Rate(); got != 1 {
		t.Errorf("Rate() = %v, want 1", got)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext on cancelled ctx = %v", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("sleepContext(0) = %v", err)
	}
}

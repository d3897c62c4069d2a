// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/zohosync/internal/metrics"
)

// Budget is the single concurrency budget of one job run. Every Zoho call
// made during the run goes through Acquire: first the rate limiter
// (calls per second), then the semaphore (calls in flight). Fan-out code
// sizes its worker pools with MaxConcurrent so that the two never disagree.
type Budget struct {
	name          string
	limiter       *RateLimiter
	sem           *semaphore.Weighted
	maxConcurrent int
}

// NewBudget creates a budget with the given concurrency cap and call rate.
func NewBudget(name string, maxConcurrent int, callsPerSecond float64) *Budget {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Budget{
		name:          name,
		limiter:       NewRateLimiter(callsPerSecond),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: maxConcurrent,
	}
}

// Name returns the budget label used in metrics.
func (b *Budget) Name() string {
	return b.name
}

// MaxConcurrent returns the maximum number of Zoho calls in flight.
func (b *Budget) MaxConcurrent() int {
	return b.maxConcurrent
}

// CallsPerSecond returns the rate limit.
func (b *Budget) CallsPerSecond() float64 {
	return b.limiter.Rate()
}

// Acquire takes one rate limiter token and one concurrency slot. The caller
// must invoke release once its HTTP attempt has finished.
func (b *Budget) Acquire(ctx context.Context) (release func(), err error) {
	wait, err := b.limiter.Acquire(ctx)
	metrics.RecordRateLimiterWait(b.name, wait)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("concurrency budget: %w", err)
	}
	return func() { b.sem.Release(1) }, nil
}

func (b *Budget) String() string {
	return fmt.Sprintf("%s(max_concurrent=%d, calls_per_second=%g)", b.name, b.maxConcurrent, b.limiter.Rate())
}

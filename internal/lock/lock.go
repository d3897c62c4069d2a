// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package lock prevents two runs of the same sync job from overlapping.
//
// Local guards runs inside one process. Redis extends the guarantee across
// processes with a bsm/redislock lease that is refreshed while the run is in
// progress. A Redis outage degrades to the local guard rather than blocking
// every job.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrJobRunning is returned when another run of the job holds the lock.
var ErrJobRunning = errors.New("job is already running")

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker acquires a per-job run lock without waiting.
type Locker interface {
	Acquire(ctx context.Context, job string) (Release, error)
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

// Acquire implements Locker.
func (l *Local) Acquire(_ context.Context, job string) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[job] {
		return nil, ErrJobRunning
	}
	l.held[job] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, job)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether job is currently locked.
func (l *Local) Held(job string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[job]
}

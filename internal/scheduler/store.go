// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// JobState is the persisted schedule of one job.
type JobState struct {
	ID                  string
	Cron                string
	Timezone            string
	NextRunTime         time.Time
	MisfireGraceSeconds int
	LastRunAt           *time.Time
	LastStatus          string
	LastError           string
}

// JobStore persists job schedules across restarts.
type JobStore interface {
	// LoadJobs returns every persisted job.
	LoadJobs(ctx context.Context) ([]JobState, error)
	// SaveJob inserts or replaces the job with state.ID.
	SaveJob(ctx context.Context, state JobState) error
	// RemoveJob deletes a job. Removing an unknown id is not an error.
	RemoveJob(ctx context.Context, id string) error
}

// MemoryStore is a JobStore that keeps schedules in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]JobState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]JobState)}
}

// LoadJobs implements JobStore.
func (m *MemoryStore) LoadJobs(_ context.Context) ([]JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobState, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// SaveJob implements JobStore.
func (m *MemoryStore) SaveJob(_ context.Context, state JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[state.ID] = state
	return nil
}

// RemoveJob implements JobStore.
func (m *MemoryStore) RemoveJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// Get returns the stored state for id.
func (m *MemoryStore) Get(id string) (JobState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

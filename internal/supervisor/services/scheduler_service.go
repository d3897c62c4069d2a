// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package services

import (
	"context"
	"fmt"
)

// SchedulerManager is the lifecycle of *scheduler.Scheduler.
type SchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the cron scheduler's Start/Stop lifecycle to
// suture's Serve. Stop waits for a job that is running at shutdown.
type SchedulerService struct {
	manager SchedulerManager
	name    string
}

// NewSchedulerService wraps the scheduler.
func NewSchedulerService(manager SchedulerManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "sync-scheduler",
	}
}

// Serve implements suture.Service. A Start failure (usually a job store that
// cannot be read) is returned so that suture retries with backoff.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in suture log events.
func (s *SchedulerService) String() string {
	return s.name
}

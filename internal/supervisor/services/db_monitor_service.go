// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DBMonitorService pings MongoDB on an interval, exports the result as the
// dependency_up gauge and logs transitions. It never returns an error for a
// failed ping; the scheduler and jobs surface those themselves.
type DBMonitorService struct {
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	name     string

	checked atomic.Bool
	up      atomic.Bool
}

// NewDBMonitorService creates a monitor. A non-positive interval means 30s.
func NewDBMonitorService(db Pinger, interval time.Duration) *DBMonitorService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DBMonitorService{
		db:       db,
		interval: interval,
		timeout:  min(5*time.Second, interval),
		name:     "mongodb-monitor",
	}
}

// Serve implements suture.Service.
func (m *DBMonitorService) Serve(ctx context.Context) error {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *DBMonitorService) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.db.Ping(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	up := err == nil
	metrics.RecordDependencyUp("mongodb", up)

	wasChecked := m.checked.Swap(true)
	if wasUp := m.up.Swap(up); wasChecked && wasUp == up {
		return
	}
	if up {
		logging.Info().Msg("MongoDB reachable")
	} else {
		logging.Warn().Err(err).Msg("MongoDB unreachable")
	}
}

// Healthy reports the result of the most recent ping. It is false until the
// first ping completes.
func (m *DBMonitorService) Healthy() bool {
	return m.checked.Load() && m.up.Load()
}

// String identifies the service in suture log events.
func (m *DBMonitorService) String() string {
	return m.name
}

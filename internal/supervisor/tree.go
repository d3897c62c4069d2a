// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/zohosync/internal/config"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is how long a service gets to return from Serve after
	// its context is canceled. The jobs layer uses the larger of this and
	// JobShutdownTimeout because a sync run finishes its current batch first.
	// Default: 10s
	ShutdownTimeout time.Duration

	// JobShutdownTimeout bounds how long the jobs layer waits for a running
	// sync job during shutdown.
	// Default: 60s
	JobShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the suture defaults plus a minute for jobs to drain.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold:   5.0,
		FailureDecay:       30.0,
		FailureBackoff:     15 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		JobShutdownTimeout: 60 * time.Second,
	}
}

// TreeConfigFrom derives a tree configuration from the server settings.
func TreeConfigFrom(cfg *config.ServerConfig) TreeConfig {
	tc := DefaultTreeConfig()
	if cfg != nil && cfg.ShutdownTimeout > 0 {
		tc.ShutdownTimeout = cfg.ShutdownTimeout
	}
	return tc
}

// SupervisorTree manages the hierarchical supervisor structure for ZohoSync.
//
// The tree is organized into three layers:
//   - data: MongoDB connectivity monitor
//   - jobs: the cron scheduler that runs the sync jobs
//   - api: operations HTTP listener (/healthz, /metrics)
//
// A scheduler that keeps crashing is restarted with backoff inside its own
// layer and never takes /healthz down with it.
type SupervisorTree struct {
	root   *suture.Supervisor
	data   *suture.Supervisor
	jobs   *suture.Supervisor
	api    *suture.Supervisor
	logger *slog.Logger
	config TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given configuration.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.JobShutdownTimeout < config.ShutdownTimeout {
		config.JobShutdownTimeout = max(defaults.JobShutdownTimeout, config.ShutdownTimeout)
	}

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}

	spec := func(timeout time.Duration) suture.Spec {
		return suture.Spec{
			FailureThreshold: config.FailureThreshold,
			FailureDecay:     config.FailureDecay,
			FailureBackoff:   config.FailureBackoff,
			Timeout:          timeout,
		}
	}

	rootSpec := spec(config.JobShutdownTimeout)
	rootSpec.EventHook = handler.MustHook()

	root := suture.New("zohosync", rootSpec)
	data := suture.New("data-layer", spec(config.ShutdownTimeout))
	jobs := suture.New("jobs-layer", spec(config.JobShutdownTimeout))
	api := suture.New("api-layer", spec(config.ShutdownTimeout))

	root.Add(data)
	root.Add(jobs)
	root.Add(api)

	return &SupervisorTree{
		root:   root,
		data:   data,
		jobs:   jobs,
		api:    api,
		logger: logger,
		config: config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddDataService adds a service to the data layer supervisor.
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddJobsService adds a service to the jobs layer supervisor.
// The scheduler service lives here.
func (t *SupervisorTree) AddJobsService(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// AddAPIService adds a service to the API layer supervisor.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve starts the supervisor tree and blocks until the context is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine.
// Returns a channel that receives the error (or nil) when the supervisor stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns the services that failed to stop within
// their shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

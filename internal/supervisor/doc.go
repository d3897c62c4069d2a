// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
Package supervisor provides process supervision for ZohoSync using suture v4.

The tree organizes the long-running services of the daemon into three layers:

	RootSupervisor ("zohosync")
	├── DataSupervisor ("data-layer")
	│   └── DBMonitorService
	├── JobsSupervisor ("jobs-layer")
	│   └── SchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (/healthz, /metrics)

Each layer restarts its own children with exponential backoff. The jobs layer
gets a longer shutdown timeout so that a sync run in flight can finish its
current batch after SIGTERM.

Supervisor events (service failures, restarts, backoff) are logged through
sutureslog into the zerolog stream:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Server))
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewDBMonitorService(db, 30*time.Second))
	tree.AddJobsService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
*/
package supervisor

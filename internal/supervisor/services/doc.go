// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
Package services provides suture.Service wrappers for ZohoSync components.

Each wrapper translates a component's own lifecycle into suture's
Serve(ctx) error and implements fmt.Stringer so that supervisor events name
the service:

  - SchedulerService: Start/Stop of the cron scheduler. Stop waits for a sync
    job that is still running.
  - HTTPServerService: ListenAndServe/Shutdown of the operations listener.
  - DBMonitorService: periodic MongoDB ping exported as dependency_up.

A wrapper returns an error only when the component itself failed; suture then
restarts it with backoff. Returning ctx.Err() after a requested shutdown is
expected and is not counted as a failure.
*/
package services

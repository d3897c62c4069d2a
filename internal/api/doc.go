// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
Package api provides the operations HTTP listener of ZohoSync.

The listener is read-only. It never starts or changes a sync job:

	GET /healthz      liveness plus a MongoDB ping (503 when the ping fails)
	GET /livez        process liveness only
	GET /metrics      Prometheus exposition (promhttp)
	GET /api/v1/jobs  persisted schedule and last outcome of every sync job

Every request gets an X-Request-ID and a logging correlation id so that
handler log lines can be grouped.
*/
package api

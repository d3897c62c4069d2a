// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
Package sync mirrors Zoho Books and Zoho Inventory data into MongoDB.

Four jobs run on the scheduler, each through Runner.Run so that every run gets
a correlation id, a run lock, metrics and a Slack notification:

  - invoices: replace the previous-month-start..today window with fresh
    invoice details
  - credit_notes: append new credit notes from the first pages of the list
  - shipments: append new shipment orders, walking the list from the last
    page back to the first
  - stock: snapshot yesterday's available-for-sale stock of one warehouse,
    once per day

Run lifecycle:

	Start -> AcquireToken -> Paginate -> FanOutDetails -> Normalize
	      -> Reconcile -> BulkWrite -> Notify -> End

Any step may fail. A failed run is logged, notified with the error truncated
to 500 characters and returned to the scheduler; it never takes the process
down. Per-record failures (one detail fetch, one rejected document) are
counted in the run summary and do not fail the run.

Concurrency:

Each run creates one zoho.Budget from its job configuration. The budget's
rate limiter paces every Zoho call and its semaphore caps in-flight calls;
detail fan-out is sized to the same cap and results keep their input order.
*/
package sync

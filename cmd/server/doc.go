// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
Package main is the entry point for the ZohoSync daemon.

ZohoSync mirrors Zoho Books invoices and credit notes and Zoho Inventory
shipment orders and warehouse stock into MongoDB on cron schedules.

# Application Architecture

	RootSupervisor ("zohosync")
	├── DataSupervisor ("data-layer")
	│   └── MongoDB monitor (dependency_up gauge)
	├── JobsSupervisor ("jobs-layer")
	│   └── Scheduler (invoices, credit_notes, shipments, stock)
	└── APISupervisor ("api-layer")
	    └── Operations listener (/healthz, /livez, /metrics, /api/v1/jobs)

Startup order:

 1. Configuration: koanf v2 (defaults, config.yaml, .env, environment)
 2. Logging: zerolog with JSON or console output
 3. MongoDB: connect, ping and ensure indexes
 4. Run lock: Redis (LOCK_ENABLED=true) or in-process
 5. Sync runner: Zoho client opener, Slack notifier
 6. Scheduler: persisted in the cron_jobs collection
 7. Supervisor tree

# Configuration

Required environment:

	ZOHO_CLIENT_ID, ZOHO_CLIENT_SECRET
	ZOHO_BOOKS_REFRESH_TOKEN, ZOHO_INVENTORY_REFRESH_TOKEN
	ZOHO_ORGANIZATION_ID
	MONGO_URI, MONGO_DATABASE

Optional: SLACK_WEBHOOK_URL, LOCK_ENABLED with REDIS_ADDR, TZ_NAME and the
per-job *_SYNC_CRON, *_MAX_CONCURRENT and *_CALLS_PER_SECOND variables.

# Manual runs

A single job can be run in the foreground without starting the scheduler,
for example to backfill after an outage:

	./zohosync -run invoices

The run takes the same lock as the scheduled job and sends the same
notification.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The scheduler waits for a
running job, the operations listener drains within SHUTDOWN_TIMEOUT and the
MongoDB connection is closed last.
*/
package main

// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package testinfra provides test infrastructure for ZohoSync.
//
// # Fake servers
//
// FakeZoho serves the accounts, Books and Inventory endpoints the sync jobs
// call, backed by in-memory records. MockWebhookServer captures Slack webhook
// deliveries. Both run on httptest and need no build tag:
//
//	fake := testinfra.NewFakeZoho(t)
//	fake.SetInvoices(records)
//	client, _ := zoho.Open(ctx, zoho.Books, fake.Config(), budget)
//
// # Containers
//
// With the integration build tag, NewMongoContainer and NewRedisContainer start
// real MongoDB and Redis instances through testcontainers-go:
//
//	func TestStore(t *testing.T) {
//	    mongo := testinfra.StartMongo(t)
//	    db, err := database.New(ctx, &config.MongoConfig{URI: mongo.URI, Database: "test"})
//	    // ...
//	}
//
// Container tests are skipped when Docker is unavailable. The first run
// downloads the images; later runs use the local cache.
package testinfra

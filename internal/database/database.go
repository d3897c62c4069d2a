// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package database is the MongoDB layer of ZohoSync: the mirrored Zoho
// collections, the reconciliation queries the sync jobs run against them,
// product lookup and the persistent scheduler job store.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/logging"
)

// Collection names.
const (
	InvoicesCollection    = "invoices"
	CreditNotesCollection = "credit_notes"
	ShipmentsCollection   = "shipments"
	StockCollection       = "zoho_stock"
	ProductsCollection    = "products"
	CronJobsCollection    = "cron_jobs"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("document not found")

// DB wraps the MongoDB client and the application database.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *config.MongoConfig
}

// New connects to MongoDB, verifies the connection and ensures indexes.
func New(ctx context.Context, cfg *config.MongoConfig) (*DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetAppName("zohosync")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	db := &DB{client: client, db: client.Database(cfg.Database), cfg: cfg}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	if err := db.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logging.Info().Str("database", cfg.Database).Msg("Connected to MongoDB")
	return db, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	if db.client == nil {
		return nil
	}
	return db.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.client == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.client.Ping(ctx, readpref.Primary())
}

// Collection returns a handle to a named collection.
func (db *DB) Collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

// EnsureIndexes creates the lookup indexes used by reconciliation. Indexes
// are not unique: duplicates are prevented by the existence checks so that
// a stray duplicate never blocks a whole batch.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		InvoicesCollection: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
		CreditNotesCollection: {
			{Keys: bson.D{{Key: "creditnote_id", Value: 1}}},
		},
		ShipmentsCollection: {
			{Keys: bson.D{{Key: "shipment_order_id", Value: 1}}},
		},
		StockCollection: {
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "item_name", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

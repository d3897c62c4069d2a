// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

//go:build integration

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/scheduler"
	"github.com/tomtom215/zohosync/internal/testinfra"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	mongo := testinfra.StartMongo(t)

	ctx := context.Background()
	db, err := New(ctx, &config.MongoConfig{
		URI:            mongo.URI,
		Database:       "zohosync_test",
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) }) //nolint:errcheck
	return db
}

func TestIntegration_DeleteInvoicesInRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }
	docs := []bson.D{
		{{Key: "invoice_id", Value: "1"}, {Key: "date", Value: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)}},
		{{Key: "invoice_id", Value: "2"}, {Key: "date", Value: day(1)}},
		{{Key: "invoice_id", Value: "3"}, {Key: "date", Value: day(28)}},
		{{Key: "invoice_id", Value: "4"}, {Key: "date", Value: "2026-02-10"}},
		{{Key: "invoice_id", Value: "5"}, {Key: "date", Value: "2026-03-01"}},
	}
	if res := db.InsertDocuments(ctx, InvoicesCollection, docs); res.Inserted != 5 {
		t.Fatalf("insert = %+v", res)
	}

	deleted, err := db.DeleteInvoicesInRange(ctx, day(1), day(28))
	if err != nil {
		t.Fatalf("DeleteInvoicesInRange: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	left, err := db.ExistingIDs(ctx, InvoicesCollection, "invoice_id", []string{"1", "2", "3", "4", "5"})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Errorf("remaining = %v, want ids 1 and 5", left)
	}
	for _, id := range []string{"1", "5"} {
		if _, ok := left[id]; !ok {
			t.Errorf("invoice %s should survive", id)
		}
	}
}

func TestIntegration_ExistingIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	db.InsertDocuments(ctx, CreditNotesCollection, []bson.D{
		{{Key: "creditnote_id", Value: "10"}},
		{{Key: "creditnote_id", Value: "11"}},
	})

	found, err := db.ExistingIDs(ctx, CreditNotesCollection, "creditnote_id", []string{"10", "12"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := found["10"]; !ok || len(found) != 1 {
		t.Errorf("found = %v", found)
	}

	empty, err := db.ExistingIDs(ctx, CreditNotesCollection, "creditnote_id", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty lookup = %v, %v", empty, err)
	}
}

func TestIntegration_StockExistsForDate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	exists, err := db.StockExistsForDate(ctx, date)
	if err != nil || exists {
		t.Fatalf("before insert: %v, %v", exists, err)
	}

	db.InsertDocuments(ctx, StockCollection, []bson.D{
		{{Key: "item_name", Value: "Chew Toy"}, {Key: "date", Value: date}},
	})

	exists, err = db.StockExistsForDate(ctx, date.Add(15*time.Hour))
	if err != nil || !exists {
		t.Errorf("after insert: %v, %v", exists, err)
	}
}

func TestIntegration_FindProductID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	oid := primitive.NewObjectID()
	if _, err := db.Collection(ProductsCollection).InsertOne(ctx, bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "Chicken Jerky (200g)"},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"exact", "Chicken Jerky (200g)", oid.Hex()},
		{"case insensitive", "chicken jerky (200G)", oid.Hex()},
		{"missing", "Duck Treats", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindProductID(ctx, tt.query)
			if tt.want == "" {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("err = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("FindProductID(%q) = %q, %v", tt.query, got, err)
			}
		})
	}
}

func TestIntegration_JobStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewJobStore(db)

	next := time.Date(2026, 3, 14, 10, 10, 0, 0, time.UTC)
	state := scheduler.JobState{
		ID:                  "sync_invoices",
		Cron:                "40 15 * * *",
		Timezone:            "Asia/Kolkata",
		NextRunTime:         next,
		MisfireGraceSeconds: 300,
	}
	if err := store.SaveJob(ctx, state); err != nil {
		t.Fatal(err)
	}

	ran := next.Add(time.Minute)
	state.LastRunAt = &ran
	state.LastStatus = "error"
	state.LastError = "zoho unavailable"
	if err := store.SaveJob(ctx, state); err != nil {
		t.Fatal(err)
	}

	states, err := store.LoadJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 {
		t.Fatalf("loaded %d jobs, want 1", len(states))
	}
	got := states[0]
	if got.Cron != state.Cron || !got.NextRunTime.Equal(next) || got.LastStatus != "error" || got.LastRunAt == nil {
		t.Errorf("loaded = %+v", got)
	}

	if err := store.RemoveJob(ctx, state.ID); err != nil {
		t.Fatal(err)
	}
	if states, _ := store.LoadJobs(ctx); len(states) != 0 {
		t.Errorf("job not removed: %+v", states)
	}
}

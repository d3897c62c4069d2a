// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/testinfra"
)

func TestSyncShipments_ProcessesPagesInReverse(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetShipments(shipmentRecords(450))

	sum, err := env.runner.SyncShipments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Pages != 3 || sum.Inserted != 450 {
		t.Errorf("summary = %+v", sum)
	}

	ids := env.store.ids(database.ShipmentsCollection, "shipment_order_id")
	if ids[0] != "so-0400" || ids[50] != "so-0200" || ids[449] != "so-0199" {
		t.Errorf("insert order starts %s, %s and ends %s; want last page first", ids[0], ids[50], ids[449])
	}
	if got := env.store.inserts[database.ShipmentsCollection]; got != 3 {
		t.Errorf("insert batches = %d, want one per page", got)
	}

	sleeps := env.recordedSleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second {
		t.Errorf("page pauses = %v, want two 1s pauses", sleeps)
	}
}

func TestSyncShipments_BatchesRespectCap(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetShipments(shipmentRecords(23))
	env.fake.SetLatency(5 * time.Millisecond)

	if _, err := env.runner.SyncShipments(context.Background()); err != nil {
		t.Fatal(err)
	}
	if peak := env.fake.PeakInFlight(); peak > 5 {
		t.Errorf("peak in-flight = %d, want <= 5", peak)
	}
	if got := env.fake.Calls(testinfra.RouteShipmentDetail); got != 23 {
		t.Errorf("detail calls = %d, want 23", got)
	}
}

func TestSyncShipments_SkipsStoredAndFailed(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetShipments(shipmentRecords(6))
	env.fake.FailDetail("so-0002", http.StatusBadRequest)

	first, err := env.runner.SyncShipments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 5 || first.Failed != 1 {
		t.Errorf("first run = %+v", first)
	}

	second, err := env.runner.SyncShipments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Only the shipment that failed before is fetched again, and it fails again.
	if second.Inserted != 0 || second.Skipped != 5 || second.Failed != 1 {
		t.Errorf("second run = %+v", second)
	}
}

func TestSyncShipments_UsesInventoryToken(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.runner.SyncShipments(context.Background()); err != nil {
		t.Fatal(err)
	}
	q := env.fake.Queries(testinfra.RouteToken)
	if len(q) != 1 || q[0].Get("refresh_token") != "inventory-refresh" {
		t.Errorf("token exchanges = %v", q)
	}
}

func TestSyncShipments_ListFailureKeepsEarlierPages(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetShipments(shipmentRecords(450))
	env.fake.FailListPage(testinfra.RouteShipmentList, 3, http.StatusBadRequest)

	sum, err := env.runner.SyncShipments(context.Background())
	if err != nil {
		t.Fatalf("a failing later page must not fail the run: %v", err)
	}
	if sum.Pages != 2 || sum.PageFailures != 1 || sum.Inserted != 400 {
		t.Errorf("summary = %+v", sum)
	}
	if got := sum.Status(nil); got != StatusPartial {
		t.Errorf("status = %s, want partial", got)
	}

	ids := env.store.ids(database.ShipmentsCollection, "shipment_order_id")
	if len(ids) != 400 {
		t.Fatalf("stored shipments = %d, want 400", len(ids))
	}
	if ids[0] != "so-0200" || ids[399] != "so-0199" {
		t.Errorf("insert order starts %s and ends %s; want page 2 then page 1", ids[0], ids[399])
	}
	if field(env.notifier.last(t).details, "Page failures") != "1" {
		t.Errorf("notification does not report the page failure")
	}
}

func TestSyncShipments_FirstPageFailureFailsRun(t *testing.T) {
	env := newTestEnv(t)
	env.fake.SetShipments(shipmentRecords(10))
	env.fake.FailListPage(testinfra.RouteShipmentList, 1, http.StatusBadRequest)

	sum, err := env.runner.SyncShipments(context.Background())
	if err == nil {
		t.Fatal("expected an error when no list page could be read")
	}
	if sum.Status(err) != StatusFailed || len(env.store.docs(database.ShipmentsCollection)) != 0 {
		t.Errorf("summary = %+v, stored = %d", sum, len(env.store.docs(database.ShipmentsCollection)))
	}
}

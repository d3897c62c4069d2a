// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/normalize"
	"github.com/tomtom215/zohosync/internal/notify"
	"github.com/tomtom215/zohosync/internal/testinfra"
)

// memStore is an in-memory Store.
type memStore struct {
	mu          sync.Mutex
	collections map[string][]bson.D
	products    map[string]string
	inserts     map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		collections: make(map[string][]bson.D),
		products:    make(map[string]string),
		inserts:     make(map[string]int),
	}
}

func (s *memStore) seed(collection string, docs ...bson.D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], docs...)
}

func (s *memStore) docs(collection string) []bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bson.D, len(s.collections[collection]))
	copy(out, s.collections[collection])
	return out
}

func (s *memStore) ids(collection, field string) []string {
	var ids []string
	for _, d := range s.docs(collection) {
		v, _ := normalize.Lookup(d, field)
		ids = append(ids, normalize.IDString(v))
	}
	return ids
}

func (s *memStore) DeleteInvoicesInRange(_ context.Context, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := normalize.SnapshotDate(start)
	until := normalize.SnapshotDate(end).AddDate(0, 0, 1)
	fromStr, toStr := start.Format(dateLayout), end.Format(dateLayout)

	var kept []bson.D
	var deleted int64
	for _, d := range s.collections[database.InvoicesCollection] {
		v, _ := normalize.Lookup(d, "date")
		in := false
		switch date := v.(type) {
		case time.Time:
			in = !date.Before(from) && date.Before(until)
		case string:
			in = date >= fromStr && date <= toStr
		}
		if in {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	s.collections[database.InvoicesCollection] = kept
	return deleted, nil
}

func (s *memStore) InsertDocuments(_ context.Context, collection string, docs []bson.D) database.InsertResult {
	if len(docs) == 0 {
		return database.InsertResult{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], docs...)
	s.inserts[collection]++
	return database.InsertResult{Inserted: len(docs)}
}

func (s *memStore) ExistingIDs(_ context.Context, collection, field string, ids []string) (map[string]struct{}, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	found := make(map[string]struct{})
	for _, d := range s.docs(collection) {
		v, _ := normalize.Lookup(d, field)
		if id := normalize.IDString(v); want[id] {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (s *memStore) StockExistsForDate(_ context.Context, date time.Time) (bool, error) {
	day := normalize.SnapshotDate(date)
	for _, d := range s.docs(database.StockCollection) {
		if v, _ := normalize.Lookup(d, "date"); isTime(v, day) {
			return true, nil
		}
	}
	return false, nil
}

func isTime(v any, want time.Time) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(want)
}

func (s *memStore) FindProductID(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.products[name]; ok {
		return id, nil
	}
	return "", database.ErrNotFound
}

// notification is one captured Notify call.
type notification struct {
	title   string
	success bool
	details []notify.Field
	errMsg  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, title string, success bool, details []notify.Field, errMsg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title: title, success: success, details: details, errMsg: errMsg})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

func (n *recordingNotifier) last(t *testing.T) notification {
	t.Helper()
	all := n.all()
	if len(all) == 0 {
		t.Fatal("no notification sent")
	}
	return all[len(all)-1]
}

func field(details []notify.Field, label string) string {
	for _, f := range details {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

// testNow is 16:00 IST on 2026-03-14.
var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testJobsConfig() *config.JobsConfig {
	job := func(maxConcurrent int, perPage int) config.JobConfig {
		return config.JobConfig{
			Enabled:        true,
			Cron:           "0 15 * * *",
			MaxConcurrent:  maxConcurrent,
			CallsPerSecond: 10000,
			PerPage:        perPage,
		}
	}
	return &config.JobsConfig{
		Invoices:              job(5, 200),
		InvoiceLookbackMonths: 1,
		CreditNotes:           job(3, 200),
		CreditNotePageLimit:   2,
		Shipments:             job(5, 200),
		ShipmentPagePause:     time.Second,
		Stock:                 job(2, 2000),
		StockWarehouse:        "Pupscribe Enterprises Private Limited",
	}
}

type testEnv struct {
	fake     *testinfra.FakeZoho
	store    *memStore
	notifier *recordingNotifier
	runner   *Runner

	mu     sync.Mutex
	sleeps []time.Duration
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	env := &testEnv{
		fake:     testinfra.NewFakeZoho(t),
		store:    newMemStore(),
		notifier: &recordingNotifier{},
	}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithSleep(func(_ context.Context, d time.Duration) error {
			env.mu.Lock()
			env.sleeps = append(env.sleeps, d)
			env.mu.Unlock()
			return nil
		}),
	}
	env.runner = NewRunner(env.store, NewClientOpener(env.fake.Config()), env.notifier,
		testJobsConfig(), loc, append(base, opts...)...)
	return env
}

func (e *testEnv) recordedSleeps() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.sleeps...)
}

func invoiceRecords(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"invoice_id":     fmt.Sprintf("%d", 460000000000+i),
			"invoice_number": fmt.Sprintf("INV-%05d", i),
			"date":           "2026-03-02",
			"due_date":       "2026-03-17",
			"created_time":   "2026-03-02T11:15:00+0530",
			"customer_name":  "Happy Tails",
			"total":          1499.5,
			"line_items": []any{
				map[string]any{"name": "Chew Toy", "quantity": 2, "rate": 749.75},
			},
		}
	}
	return out
}

func creditNoteRecords(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"creditnote_id":     fmt.Sprintf("cn-%04d", i),
			"creditnote_number": fmt.Sprintf("CN-%04d", i),
			"date":              "2026-03-05",
			"created_time":      "2026-03-05T09:00:00+0530",
			"total":             250,
		}
	}
	return out
}

func shipmentRecords(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"shipment_order_id": fmt.Sprintf("so-%04d", i),
			"shipment_number":   fmt.Sprintf("SH-%04d", i),
			"date":              "2026-03-10",
			"created_time":      "2026-03-10T14:00:00+0530",
			"carrier":           "Delhivery",
		}
	}
	return out
}

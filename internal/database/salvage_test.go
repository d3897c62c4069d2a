// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeInserter stores documents and fails according to its rules.
type fakeInserter struct {
	stored []interface{}
	calls  int
	// poison documents make any batch containing them fail with a non-bulk error.
	poison map[interface{}]bool
	// duplicates are rejected individually as a bulk write exception.
	duplicates map[interface{}]bool
}

func (f *fakeInserter) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	f.calls++
	for _, d := range docs {
		if f.poison[d] {
			return nil, errors.New("document too large")
		}
	}

	var writeErrors []mongo.BulkWriteError
	for i, d := range docs {
		if f.duplicates[d] {
			writeErrors = append(writeErrors, mongo.BulkWriteError{
				WriteError: mongo.WriteError{Index: i, Code: 11000, Message: "E11000 duplicate key"},
			})
			continue
		}
		f.stored = append(f.stored, d)
	}
	if len(writeErrors) > 0 {
		return &mongo.InsertManyResult{}, mongo.BulkWriteException{WriteErrors: writeErrors}
	}
	return &mongo.InsertManyResult{}, nil
}

func docs(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestInsertManySalvage_AllSucceed(t *testing.T) {
	f := &fakeInserter{}
	res := InsertManySalvage(context.Background(), f, docs(10))
	if res.Inserted != 10 || res.Failed != 0 || res.Err() != nil {
		t.Errorf("result = %+v", res)
	}
	if f.calls != 1 {
		t.Errorf("calls = %d, want 1", f.calls)
	}
}

func TestInsertManySalvage_BulkWriteErrorsKeepSiblings(t *testing.T) {
	f := &fakeInserter{duplicates: map[interface{}]bool{2: true, 7: true}}
	res := InsertManySalvage(context.Background(), f, docs(10))
	if res.Inserted != 8 || res.Failed != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 2 || res.Err() == nil {
		t.Errorf("errors = %v", res.Errors)
	}
	if f.calls != 1 {
		t.Errorf("unordered insert should not be retried, calls = %d", f.calls)
	}
	if len(f.stored) != 8 {
		t.Errorf("stored %d documents", len(f.stored))
	}
}

func TestInsertManySalvage_SplitsAroundPoisonDocument(t *testing.T) {
	f := &fakeInserter{poison: map[interface{}]bool{5: true}}
	res := InsertManySalvage(context.Background(), f, docs(8))
	if res.Inserted != 7 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(f.stored) != 7 {
		t.Errorf("stored %d documents, want 7", len(f.stored))
	}
	for _, d := range f.stored {
		if d == 5 {
			t.Error("poison document was stored")
		}
	}
}

func TestInsertManySalvage_Empty(t *testing.T) {
	f := &fakeInserter{}
	if res := InsertManySalvage(context.Background(), f, nil); res.Inserted != 0 || f.calls != 0 {
		t.Errorf("result = %+v, calls = %d", res, f.calls)
	}
}

func TestInsertManySalvage_CancelledContextStopsSplitting(t *testing.T) {
	f := &fakeInserter{poison: map[interface{}]bool{0: true}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := InsertManySalvage(ctx, f, docs(16))
	if res.Failed != 16 || f.calls != 1 {
		t.Errorf("result = %+v, calls = %d", res, f.calls)
	}
}

func TestInvoiceRangeFilter(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 14, 18, 0, 0, 0, loc)

	filter := invoiceRangeFilter(start, end)
	or := filter[0].Value.(bson.A)

	timeBounds := or[0].(bson.D)[0].Value.(bson.D)
	if got := timeBounds[0].Value.(time.Time); !got.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("$gte = %v", got)
	}
	if got := timeBounds[1].Value.(time.Time); !got.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("$lt = %v", got)
	}

	strBounds := or[1].(bson.D)[0].Value.(bson.D)
	if strBounds[0].Value != "2026-02-01" || strBounds[1].Value != "2026-03-14" {
		t.Errorf("string bounds = %v", strBounds)
	}
}

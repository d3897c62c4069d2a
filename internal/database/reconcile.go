// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/normalize"
)

const dateLayout = "2006-01-02"

// invoiceRangeFilter matches invoices whose date falls in [start, end] by
// calendar day. Stored dates are either parsed times or, when Zoho sent an
// unrecognized format, the raw string, so both forms are matched.
func invoiceRangeFilter(start, end time.Time) bson.D {
	startDay := normalize.SnapshotDate(start)
	afterEnd := normalize.SnapshotDate(end).AddDate(0, 0, 1)
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "date", Value: bson.D{
			{Key: "$gte", Value: startDay},
			{Key: "$lt", Value: afterEnd},
		}}},
		bson.D{{Key: "date", Value: bson.D{
			{Key: "$gte", Value: start.Format(dateLayout)},
			{Key: "$lte", Value: end.Format(dateLayout)},
		}}},
	}}}
}

// DeleteInvoicesInRange removes every invoice dated inside the window.
func (db *DB) DeleteInvoicesInRange(ctx context.Context, start, end time.Time) (int64, error) {
	res, err := db.Collection(InvoicesCollection).DeleteMany(ctx, invoiceRangeFilter(start, end))
	if err != nil {
		return 0, fmt.Errorf("failed to delete invoices %s..%s: %w", start.Format(dateLayout), end.Format(dateLayout), err)
	}
	return res.DeletedCount, nil
}

// InsertDocuments salvage-inserts docs into a collection.
func (db *DB) InsertDocuments(ctx context.Context, collection string, docs []bson.D) InsertResult {
	items := make([]interface{}, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return InsertManySalvage(ctx, db.Collection(collection), items)
}

// ExistingIDs returns which of ids are already stored under field, using
// one $in query.
func (db *DB) ExistingIDs(ctx context.Context, collection, field string, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	filter := bson.D{{Key: field, Value: bson.D{{Key: "$in", Value: ids}}}}
	opts := options.Find().SetProjection(bson.D{{Key: field, Value: 1}, {Key: "_id", Value: 0}})

	cursor, err := db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", field, err)
		}
		if id := normalize.IDString(doc[field]); id != "" {
			found[id] = struct{}{}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error reading %s: %w", field, err)
	}
	return found, nil
}

// StockExistsForDate reports whether any snapshot is stored for date's calendar day.
func (db *DB) StockExistsForDate(ctx context.Context, date time.Time) (bool, error) {
	n, err := db.Collection(StockCollection).CountDocuments(ctx,
		bson.D{{Key: "date", Value: normalize.SnapshotDate(date)}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check stock snapshot for %s: %w", date.Format(dateLayout), err)
	}
	return n > 0, nil
}

// FindProductID resolves a product by name: exact match, then
// case-insensitive exact match, then full-text search. The first hit wins.
// It returns ErrNotFound when nothing matches.
func (db *DB) FindProductID(ctx context.Context, name string) (string, error) {
	products := db.Collection(ProductsCollection)
	projection := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})

	filters := []bson.D{
		{{Key: "name", Value: name}},
		{{Key: "name", Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}}},
		{{Key: "$text", Value: bson.D{{Key: "$search", Value: name}}}},
	}

	for i, filter := range filters {
		var doc bson.M
		err := products.FindOne(ctx, filter, projection).Decode(&doc)
		switch {
		case err == nil:
			return productIDString(doc["_id"]), nil
		case errors.Is(err, mongo.ErrNoDocuments):
			continue
		case i == len(filters)-1:
			// $text fails without a text index on products; treat it as no match.
			logging.Ctx(ctx).Debug().Err(err).Str("name", name).Msg("Product text search unavailable")
		default:
			return "", fmt.Errorf("failed to look up product %q: %w", name, err)
		}
	}
	return "", ErrNotFound
}

func productIDString(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return normalize.IDString(v)
}

// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/zohosync/internal/logging"
)

// InsertResult is the outcome of a salvage insert.
type InsertResult struct {
	Inserted int
	Failed   int
	Errors   []error
}

// Err joins the per-document failures, or returns nil.
func (r InsertResult) Err() error {
	return errors.Join(r.Errors...)
}

func (r *InsertResult) add(other InsertResult) {
	r.Inserted += other.Inserted
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// manyInserter is the subset of *mongo.Collection used for inserts.
type manyInserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// maxReportedErrors caps how many per-document errors are kept in a result.
const maxReportedErrors = 20

// InsertManySalvage writes docs with an unordered InsertMany so that one bad
// document never drops its siblings.
//
//   - A bulk write exception without a write concern error means the server
//     attempted every document: the write errors are the failures and the
//     rest were stored.
//   - Any other error (network, oversized batch, write concern) leaves the
//     outcome unknown, so the batch is split in halves and each half is
//     retried, down to single documents.
func InsertManySalvage(ctx context.Context, coll manyInserter, docs []interface{}) InsertResult {
	if len(docs) == 0 {
		return InsertResult{}
	}

	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return InsertResult{Inserted: len(docs)}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0 {
		res := InsertResult{Failed: len(bwe.WriteErrors), Inserted: len(docs) - len(bwe.WriteErrors)}
		for i, we := range bwe.WriteErrors {
			if i == maxReportedErrors {
				break
			}
			res.Errors = append(res.Errors, fmt.Errorf("document %d: %s (code %d)", we.Index, we.Message, we.Code))
		}
		return res
	}

	if ctx.Err() != nil {
		return InsertResult{Failed: len(docs), Errors: []error{fmt.Errorf("insert of %d documents abandoned: %w", len(docs), ctx.Err())}}
	}

	if len(docs) == 1 {
		return InsertResult{Failed: 1, Errors: []error{err}}
	}

	mid := len(docs) / 2
	logging.Ctx(ctx).Warn().Err(err).Int("batch", len(docs)).Msg("Bulk insert failed, retrying in halves")

	var res InsertResult
	res.add(InsertManySalvage(ctx, coll, docs[:mid]))
	res.add(InsertManySalvage(ctx, coll, docs[mid:]))
	if len(res.Errors) > maxReportedErrors {
		res.Errors = res.Errors[:maxReportedErrors]
	}
	return res
}

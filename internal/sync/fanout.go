// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/normalize"
)

// detailResult is the outcome of one detail fetch.
type detailResult struct {
	ID     string
	Record map[string]any
	Err    error
}

type detailFetcher func(ctx context.Context, id string) (map[string]any, error)

// fetchDetails fetches ids with at most limit in flight. Results are in the
// order of ids. A failed fetch is reported in its result and never cancels
// the others.
func fetchDetails(ctx context.Context, ids []string, limit int, fetch detailFetcher) []detailResult {
	results := make([]detailResult, len(ids))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			record, err := fetch(ctx, id)
			results[i] = detailResult{ID: id, Record: record, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchInBatches fetches ids in consecutive batches of size, waiting for a
// batch to finish before starting the next.
func fetchInBatches(ctx context.Context, ids []string, size int, fetch detailFetcher) []detailResult {
	if size < 1 {
		size = 1
	}
	results := make([]detailResult, 0, len(ids))
	for start := 0; start < len(ids); start += size {
		if ctx.Err() != nil {
			for _, id := range ids[start:] {
				results = append(results, detailResult{ID: id, Err: ctx.Err()})
			}
			break
		}
		end := min(start+size, len(ids))
		results = append(results, fetchDetails(ctx, ids[start:end], size, fetch)...)
	}
	return results
}

// newIDs returns the ids of records, deduplicated in first-seen order and
// without those already in seen. Returned ids are added to seen.
func newIDs(records []map[string]any, idOf func(map[string]any) string, seen map[string]struct{}) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id := idOf(rec)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// fieldID returns an idOf func reading one id field.
func fieldID(field string) func(map[string]any) string {
	return func(rec map[string]any) string {
		return normalize.IDString(rec[field])
	}
}

// without returns ids not present in existing, preserving order.
func without(ids []string, existing map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// collect normalizes successful results and logs failures. It returns the
// documents and the failure count.
func collect[T any](ctx context.Context, kind string, results []detailResult, process func(context.Context, map[string]any) T) ([]T, int) {
	docs := make([]T, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logging.Ctx(ctx).Warn().Err(res.Err).Str("kind", kind).Str("id", res.ID).Msg("Detail fetch failed")
			continue
		}
		docs = append(docs, process(ctx, res.Record))
	}
	return docs, failed
}

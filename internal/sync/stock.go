// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/normalize"
	"github.com/tomtom215/zohosync/internal/zoho"
)

// syncStock stores yesterday's available-for-sale stock of the configured
// warehouse, one document per item. A day that already has a snapshot is
// left alone without calling Zoho. The snapshot is only written when the
// whole report was read, so an interrupted run can be repeated the same day.
func (r *Runner) syncStock(ctx context.Context, budget *zoho.Budget, sum *Summary) error {
	log := logging.Ctx(ctx)
	yesterday := r.now().In(r.loc).AddDate(0, 0, -1)
	date := normalize.SnapshotDate(yesterday)
	day := yesterday.Format(dateLayout)

	exists, err := r.store.StockExistsForDate(ctx, date)
	if err != nil {
		return err
	}
	if exists {
		sum.NoOp = true
		log.Info().Str("date", day).Msg("Stock snapshot already stored")
		return nil
	}

	client, err := r.openClient(ctx, zoho.Inventory, budget)
	if err != nil {
		return err
	}
	defer client.Close()

	warehouse := r.cfg.StockWarehouse
	seen := make(map[string]struct{})
	var entries []normalize.StockEntry

	list := func(ctx context.Context, q zoho.ListQuery) (*zoho.Page, error) {
		return client.WarehouseReport(ctx, day, q)
	}
	walk, err := paginate(ctx, "warehouse report", list, zoho.ListQuery{PerPage: r.cfg.Stock.PerPage}, 0, func(p *zoho.Page) error {
		for _, row := range p.Records {
			entry, ok := normalize.ExtractWarehouseStock(row, warehouse)
			if !ok {
				continue
			}
			if _, dup := seen[entry.ItemName]; dup {
				continue
			}
			seen[entry.ItemName] = struct{}{}
			entries = append(entries, entry)
		}
		return nil
	})
	sum.addWalk(walk)
	if err != nil {
		return err
	}
	if walk.Incomplete != nil {
		return fmt.Errorf("warehouse report incomplete after %d page(s), snapshot not stored: %w", walk.Pages, walk.Incomplete)
	}
	sum.Fetched = len(entries)
	if len(entries) == 0 {
		log.Warn().Str("warehouse", warehouse).Str("date", day).Msg("Warehouse report has no stock for warehouse")
		return nil
	}

	createdAt := r.now()
	docs := make([]bson.D, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, normalize.StockDocument(e, date, r.productID(ctx, e.ItemName), createdAt))
	}

	sum.addInsert(ctx, database.StockCollection, r.store.InsertDocuments(ctx, database.StockCollection, docs))
	return nil
}

// productID resolves an item name to a product id, or nil.
func (r *Runner) productID(ctx context.Context, name string) *string {
	id, err := r.store.FindProductID(ctx, name)
	switch {
	case err == nil:
		return &id
	case errors.Is(err, database.ErrNotFound):
		logging.Ctx(ctx).Debug().Str("item", name).Msg("No product matches stock item")
	default:
		logging.Ctx(ctx).Warn().Err(err).Str("item", name).Msg("Product lookup failed")
	}
	return nil
}

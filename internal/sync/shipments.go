// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/normalize"
	"github.com/tomtom215/zohosync/internal/zoho"
)

// syncShipments reads every shipment order list page, then processes the
// pages from last to first so the oldest shipments are inserted first. New
// ids are detail-fetched in batches sized to the run's concurrency cap, with
// a pause between pages. A list page that fails after earlier pages were
// read ends the walk; the pages already read are still processed.
func (r *Runner) syncShipments(ctx context.Context, budget *zoho.Budget, sum *Summary) error {
	client, err := r.openClient(ctx, zoho.Inventory, budget)
	if err != nil {
		return err
	}
	defer client.Close()

	var pages []*zoho.Page
	walk, err := paginate(ctx, "shipmentorders", client.ListShipmentOrders,
		zoho.ListQuery{PerPage: r.cfg.Shipments.PerPage}, 0,
		func(p *zoho.Page) error {
			pages = append(pages, p)
			return nil
		})
	sum.addWalk(walk)
	if err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Int("pages", len(pages)).Msg("Shipment list read, processing newest page last")

	seen := make(map[string]struct{})
	for i := len(pages) - 1; i >= 0; i-- {
		err := r.appendNew(ctx, appendPage{
			kind:       "shipment",
			collection: database.ShipmentsCollection,
			idField:    "shipment_order_id",
			ids:        newIDs(pages[i].Records, normalize.ShipmentID, seen),
			fetch: func(ids []string) []detailResult {
				return fetchInBatches(ctx, ids, budget.MaxConcurrent(), client.GetShipmentOrder)
			},
			process: normalize.ProcessShipment,
		}, sum)
		if err != nil {
			return err
		}

		if i > 0 {
			if err := r.sleep(ctx, r.cfg.ShipmentPagePause); err != nil {
				return err
			}
		}
	}
	return nil
}

// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/normalize"
	"github.com/tomtom215/zohosync/internal/zoho"
)

const dateLayout = "2006-01-02"

// invoiceWindow returns the first day of the month lookback months before
// now, and now's calendar day, both at midnight in now's location.
func invoiceWindow(now time.Time, lookbackMonths int) (start, end time.Time) {
	y, m, d := now.Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	start = time.Date(y, m-time.Month(lookbackMonths), 1, 0, 0, 0, 0, now.Location())
	return start, end
}

// syncInvoices replaces every stored invoice dated inside the window with the
// current Zoho details. The window is only deleted once the whole list was
// read: a walk that stops early leaves the stored invoices untouched and the
// run is reported as partial.
func (r *Runner) syncInvoices(ctx context.Context, budget *zoho.Budget, sum *Summary) error {
	log := logging.Ctx(ctx)
	start, end := invoiceWindow(r.now().In(r.loc), r.cfg.InvoiceLookbackMonths)
	log.Info().Str("from", start.Format(dateLayout)).Str("to", end.Format(dateLayout)).Msg("Invoice window")

	client, err := r.openClient(ctx, zoho.Books, budget)
	if err != nil {
		return err
	}
	defer client.Close()

	query := zoho.ListQuery{
		PerPage:    r.cfg.Invoices.PerPage,
		SortColumn: "created_time",
		SortOrder:  "D",
		DateStart:  start.Format(dateLayout),
		DateEnd:    end.Format(dateLayout),
	}

	seen := make(map[string]struct{})
	var docs []bson.D

	walk, err := paginate(ctx, "invoices", client.ListInvoices, query, 0, func(p *zoho.Page) error {
		ids := newIDs(p.Records, fieldID("invoice_id"), seen)
		results := fetchDetails(ctx, ids, budget.MaxConcurrent(), client.GetInvoice)
		pageDocs, failed := collect(ctx, "invoice", results, normalize.ProcessInvoice)

		sum.Fetched += len(pageDocs)
		sum.Failed += failed
		docs = append(docs, pageDocs...)
		return ctx.Err()
	})
	sum.addWalk(walk)
	if err != nil {
		return err
	}
	if walk.Incomplete != nil {
		log.Warn().Err(walk.Incomplete).Int("pages_read", walk.Pages).Int("discarded", len(docs)).
			Msg("Invoice list incomplete, window left untouched")
		return nil
	}

	deleted, err := r.store.DeleteInvoicesInRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to clear invoice window: %w", err)
	}
	sum.Deleted = deleted
	log.Info().Int64("deleted", deleted).Int("replacements", len(docs)).Msg("Invoice window cleared")

	sum.addInsert(ctx, database.InvoicesCollection, r.store.InsertDocuments(ctx, database.InvoicesCollection, docs))
	return nil
}

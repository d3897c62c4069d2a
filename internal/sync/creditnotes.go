// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/normalize"
	"github.com/tomtom215/zohosync/internal/zoho"
)

// syncCreditNotes appends credit notes from the first pages of the list that
// are not stored yet. Stored credit notes are never updated. Pages read
// before a failing list page are kept.
func (r *Runner) syncCreditNotes(ctx context.Context, budget *zoho.Budget, sum *Summary) error {
	client, err := r.openClient(ctx, zoho.Books, budget)
	if err != nil {
		return err
	}
	defer client.Close()

	query := zoho.ListQuery{PerPage: r.cfg.CreditNotes.PerPage}
	seen := make(map[string]struct{})

	walk, err := paginate(ctx, "creditnotes", client.ListCreditNotes, query, r.cfg.CreditNotePageLimit, func(p *zoho.Page) error {
		return r.appendNew(ctx, appendPage{
			kind:       "credit note",
			collection: database.CreditNotesCollection,
			idField:    "creditnote_id",
			ids:        newIDs(p.Records, fieldID("creditnote_id"), seen),
			fetch: func(ids []string) []detailResult {
				return fetchDetails(ctx, ids, budget.MaxConcurrent(), client.GetCreditNote)
			},
			process: normalize.ProcessCreditNote,
		}, sum)
	})
	sum.addWalk(walk)
	return err
}

// appendPage describes one page of an append-only sync.
type appendPage struct {
	kind       string
	collection string
	idField    string
	ids        []string
	fetch      func(ids []string) []detailResult
	process    func(context.Context, map[string]any) bson.D
}

// appendNew checks which ids are stored with one $in query, fetches the
// rest and inserts them.
func (r *Runner) appendNew(ctx context.Context, page appendPage, sum *Summary) error {
	if len(page.ids) == 0 {
		return nil
	}

	existing, err := r.store.ExistingIDs(ctx, page.collection, page.idField, page.ids)
	if err != nil {
		return fmt.Errorf("failed to check existing %s ids: %w", page.kind, err)
	}
	fresh := without(page.ids, existing)
	sum.Skipped += len(page.ids) - len(fresh)
	if len(fresh) == 0 {
		return ctx.Err()
	}

	docs, failed := collect(ctx, page.kind, page.fetch(fresh), page.process)
	sum.Fetched += len(docs)
	sum.Failed += failed

	sum.addInsert(ctx, page.collection, r.store.InsertDocuments(ctx, page.collection, docs))
	return ctx.Err()
}

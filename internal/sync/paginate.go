// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"fmt"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/zoho"
)

// maxListPages bounds a pagination walk when Zoho keeps reporting more pages.
const maxListPages = 1000

type pageLister func(ctx context.Context, q zoho.ListQuery) (*zoho.Page, error)

// pageWalk reports how far a pagination walk got.
type pageWalk struct {
	Pages int

	// Incomplete is the list error that ended the walk after at least one
	// page was read. The pages before it were passed to fn.
	Incomplete error
}

// paginate requests pages 1, 2, ... of list until a page is shorter than
// q.PerPage, reports no more records, or limit pages were read (limit 0
// means maxListPages). Each page is passed to fn before the next is
// requested.
//
// A failure on the first page, an error from fn and a cancelled context are
// returned as errors. A later page that still fails after the client's
// retries stops the walk and is reported in pageWalk.Incomplete.
func paginate(ctx context.Context, kind string, list pageLister, q zoho.ListQuery, limit int, fn func(*zoho.Page) error) (pageWalk, error) {
	if limit <= 0 || limit > maxListPages {
		limit = maxListPages
	}

	var walk pageWalk
	for page := 1; page <= limit; page++ {
		q.Page = page
		p, err := list(ctx, q)
		if err != nil {
			err = fmt.Errorf("failed to list %s page %d: %w", kind, page, err)
			if walk.Pages == 0 || ctx.Err() != nil {
				return walk, err
			}
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("kind", kind).
				Int("pages_read", walk.Pages).
				Msg("List walk stopped early")
			walk.Incomplete = err
			return walk, nil
		}
		walk.Pages++

		logging.Ctx(ctx).Debug().
			Str("kind", kind).
			Int("page", page).
			Int("records", len(p.Records)).
			Bool("has_more", p.HasMore).
			Msg("Fetched list page")

		if err := fn(p); err != nil {
			return walk, err
		}
		if !p.HasMore || len(p.Records) == 0 || (q.PerPage > 0 && len(p.Records) < q.PerPage) {
			break
		}
	}
	return walk, nil
}

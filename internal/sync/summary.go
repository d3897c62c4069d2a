// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/tomtom215/zohosync/internal/database"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/notify"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Summary counts what one run did.
type Summary struct {
	Job      string
	Deleted  int64
	Fetched  int
	Inserted int
	Skipped  int
	Failed   int
	Pages    int
	Duration time.Duration

	// PageFailures counts list pages that failed and ended a walk early.
	PageFailures int

	// NoOp is set when the run found nothing to do (stock already snapshotted).
	NoOp bool
}

// Status classifies the run for metrics.
func (s *Summary) Status(err error) string {
	switch {
	case err != nil:
		return StatusFailed
	case s.NoOp:
		return StatusSkipped
	case s.Failed > 0 || s.PageFailures > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// Fields renders the summary for a notification.
func (s *Summary) Fields() []notify.Field {
	if s.NoOp {
		return []notify.Field{
			{Label: "Status", Value: "Already up to date"},
			{Label: "Duration", Value: s.Duration.Round(time.Millisecond).String()},
		}
	}

	fields := make([]notify.Field, 0, 8)
	if s.Job == JobInvoices {
		fields = append(fields, notify.Field{Label: "Deleted", Value: strconv.FormatInt(s.Deleted, 10)})
	}
	fields = append(fields,
		notify.Field{Label: "Fetched", Value: strconv.Itoa(s.Fetched)},
		notify.Field{Label: "Inserted", Value: strconv.Itoa(s.Inserted)},
	)
	if s.Job != JobInvoices {
		fields = append(fields, notify.Field{Label: "Already stored", Value: strconv.Itoa(s.Skipped)})
	}
	fields = append(fields,
		notify.Field{Label: "Failed", Value: strconv.Itoa(s.Failed)},
		notify.Field{Label: "Pages", Value: strconv.Itoa(s.Pages)},
	)
	if s.PageFailures > 0 {
		fields = append(fields, notify.Field{Label: "Page failures", Value: strconv.Itoa(s.PageFailures)})
	}
	fields = append(fields, notify.Field{Label: "Duration", Value: s.Duration.Round(time.Millisecond).String()})
	return fields
}

// addWalk records the pages read by a pagination walk.
func (s *Summary) addWalk(walk pageWalk) {
	s.Pages = walk.Pages
	if walk.Incomplete != nil {
		s.PageFailures++
	}
}

// addInsert folds a salvage insert result into the summary.
func (s *Summary) addInsert(ctx context.Context, collection string, res database.InsertResult) {
	s.Inserted += res.Inserted
	s.Failed += res.Failed
	if err := res.Err(); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("collection", collection).
			Int("inserted", res.Inserted).
			Int("failed", res.Failed).
			Msg("Some documents were not inserted")
	}
}

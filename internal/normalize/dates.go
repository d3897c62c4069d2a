// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package normalize turns raw Zoho records into the canonical documents
// stored in MongoDB.
package normalize

import (
	"context"
	"time"

	"github.com/tomtom215/zohosync/internal/logging"
)

// DateLayouts are tried in order; the first layout that parses wins.
// Zoho sends plain dates, offsets without a colon (+0530) and naive
// timestamps depending on the field and the API.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses s against DateLayouts. Values without an offset are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateFields replaces each string field in fields with its parsed time.
// Unparseable strings are kept as they are and logged.
func parseDateFields(ctx context.Context, doc map[string]any, kind, id string, fields []string) {
	for _, field := range fields {
		raw, ok := doc[field].(string)
		if !ok || raw == "" {
			continue
		}
		if t, ok := ParseDate(raw); ok {
			doc[field] = t
			continue
		}
		logging.Ctx(ctx).Warn().Str("kind", kind).Str("id", id).Str("field", field).
			Str("value", raw).Msg("Unrecognized date format, keeping raw value")
	}
}

// setCreatedAt derives created_at from created_time, falling back to date.
// Nothing is fabricated when both are missing.
func setCreatedAt(ctx context.Context, doc map[string]any, kind, id string) {
	for _, field := range []string{"created_time", "date"} {
		if v, ok := doc[field]; ok && v != nil && v != "" {
			doc["created_at"] = v
			return
		}
	}
	logging.Ctx(ctx).Warn().Str("kind", kind).Str("id", id).
		Msg("Record has neither created_time nor date, created_at not set")
}

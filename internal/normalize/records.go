// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package normalize

import (
	"context"
	"maps"
	"strconv"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

// Date-bearing fields per record type.
var (
	invoiceDateFields = []string{
		"date", "due_date", "created_time", "last_modified_time",
		"last_payment_date", "payment_expected_date",
	}
	creditNoteDateFields = []string{
		"date", "created_time", "last_modified_time",
	}
	shipmentDateFields = []string{
		"date", "shipment_date", "delivery_date", "expected_delivery_date",
		"created_time", "last_modified_time",
		"mail_first_viewed_time", "mail_last_viewed_time",
	}
)

// ShipmentIDFields are the fields a shipment key may come from, in priority order.
var ShipmentIDFields = []string{"shipment_order_id", "shipmentorder_id", "shipment_id"}

// IDString renders an id of any decoded JSON type as a string.
// Numbers are written out in full, never in exponent form.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	default:
		b, err := json.Marshal(id)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ShipmentID returns the first non-empty of ShipmentIDFields.
func ShipmentID(record map[string]any) string {
	for _, field := range ShipmentIDFields {
		if id := IDString(record[field]); id != "" {
			return id
		}
	}
	return ""
}

// ProcessInvoice normalizes one invoice detail record.
func ProcessInvoice(ctx context.Context, raw map[string]any) bson.D {
	doc := clone(raw)
	id := IDString(doc["invoice_id"])
	doc["invoice_id"] = id

	parseDateFields(ctx, doc, "invoice", id, invoiceDateFields)
	setCreatedAt(ctx, doc, "invoice", id)
	return SortRecursively(doc).(bson.D)
}

// ProcessCreditNote normalizes one credit note detail record.
func ProcessCreditNote(ctx context.Context, raw map[string]any) bson.D {
	doc := clone(raw)
	id := IDString(doc["creditnote_id"])
	doc["creditnote_id"] = id

	parseDateFields(ctx, doc, "credit_note", id, creditNoteDateFields)
	setCreatedAt(ctx, doc, "credit_note", id)
	return SortRecursively(doc).(bson.D)
}

// ProcessShipment normalizes one shipment order record. The resolved key is
// stored as shipment_order_id so that existence checks use one field, and
// shipment_id defaults to "" when Zoho omits it.
func ProcessShipment(ctx context.Context, raw map[string]any) bson.D {
	doc := clone(raw)
	id := ShipmentID(doc)
	for _, field := range ShipmentIDFields {
		if v, ok := doc[field]; ok {
			doc[field] = IDString(v)
		}
	}
	doc["shipment_order_id"] = id
	if _, ok := doc["shipment_id"]; !ok {
		doc["shipment_id"] = ""
	}

	parseDateFields(ctx, doc, "shipment", id, shipmentDateFields)
	setCreatedAt(ctx, doc, "shipment", id)
	return SortRecursively(doc).(bson.D)
}

func clone(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	return maps.Clone(raw)
}

// Lookup returns the value stored under key in a top-level document.
func Lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

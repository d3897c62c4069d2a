// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package normalize

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseDate_RoundTrip(t *testing.T) {
	samples := map[string]string{
		"2006-01-02":                "2026-03-14",
		"2006-01-02T15:04:05-0700":  "2026-03-14T10:15:30+0530",
		"2006-01-02T15:04:05Z07:00": "2026-03-14T10:15:30+05:30",
		"2006-01-02T15:04:05":       "2026-03-14T10:15:30",
		"2006-01-02 15:04:05":       "2026-03-14 10:15:30",
	}
	for _, layout := range DateLayouts {
		in, ok := samples[layout]
		if !ok {
			t.Fatalf("no sample for layout %q", layout)
		}
		got, ok := ParseDate(in)
		if !ok {
			t.Errorf("ParseDate(%q) failed", in)
			continue
		}
		if out := got.Format(layout); out != in {
			t.Errorf("round trip %q via %q = %q", in, layout, out)
		}
	}
}

func TestParseDate_Unparseable(t *testing.T) {
	for _, in := range []string{"", "14/03/2026", "yesterday", "2026-13-01"} {
		if _, ok := ParseDate(in); ok {
			t.Errorf("ParseDate(%q) unexpectedly succeeded", in)
		}
	}
}

func TestParseDate_OffsetIsHonoured(t *testing.T) {
	got, ok := ParseDate("2026-03-14T10:15:30+0530")
	if !ok {
		t.Fatal("parse failed")
	}
	if want := time.Date(2026, 3, 14, 4, 45, 30, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}
}

func keys(d bson.D) []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Key
	}
	return out
}

func TestSortRecursively(t *testing.T) {
	in := map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"y": 1, "b": []any{map[string]any{"k2": 1, "k1": 2}, "s"}},
		"mid":   json.Number("42"),
		"rate":  json.Number("12.5"),
	}
	out, ok := SortRecursively(in).(bson.D)
	if !ok {
		t.Fatalf("top level is %T, want bson.D", SortRecursively(in))
	}
	if got := keys(out); !reflect.DeepEqual(got, []string{"alpha", "mid", "rate", "zeta"}) {
		t.Errorf("top keys = %v", got)
	}

	alpha := out[0].Value.(bson.D)
	if got := keys(alpha); !reflect.DeepEqual(got, []string{"b", "y"}) {
		t.Errorf("nested keys = %v", got)
	}
	list := alpha[0].Value.([]any)
	if got := keys(list[0].(bson.D)); !reflect.DeepEqual(got, []string{"k1", "k2"}) {
		t.Errorf("keys inside array = %v", got)
	}
	if list[1] != "s" {
		t.Errorf("scalar in array changed: %v", list[1])
	}

	if out[1].Value != int64(42) {
		t.Errorf("integral json.Number = %#v, want int64", out[1].Value)
	}
	if out[2].Value != 12.5 {
		t.Errorf("fractional json.Number = %#v, want float64", out[2].Value)
	}
}

func TestSortRecursively_Idempotent(t *testing.T) {
	inputs := []any{
		nil,
		"scalar",
		int64(3),
		[]any{map[string]any{"b": 1, "a": 2}, []any{map[string]any{"d": 1, "c": 1}}},
		map[string]any{"x": bson.D{{Key: "q", Value: 1}, {Key: "p", Value: 2}}, "a": bson.M{"n": 1, "m": 2}},
		bson.D{{Key: "z", Value: 1}, {Key: "a", Value: []map[string]any{{"y": 1, "x": 2}}}},
	}
	for i, in := range inputs {
		once := SortRecursively(in)
		twice := SortRecursively(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("input %d: not idempotent\nonce:  %#v\ntwice: %#v", i, once, twice)
		}
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{json.Number("2437000001234567891"), "2437000001234567891"},
		{float64(2437000001234567), "2437000001234567"},
		{int64(99), "99"},
		{7, "7"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := IDString(tt.in); got != tt.want {
			t.Errorf("IDString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessInvoice(t *testing.T) {
	raw := map[string]any{
		"invoice_id":         json.Number("2437000000123"),
		"invoice_number":     "INV-0042",
		"date":               "2026-03-01",
		"due_date":           "2026-03-31",
		"created_time":       "2026-03-01T09:30:00+0530",
		"last_modified_time": "not a date",
		"line_items": []any{
			map[string]any{"quantity": json.Number("2"), "item_id": "1", "rate": json.Number("199.5")},
		},
	}
	doc := ProcessInvoice(context.Background(), raw)

	if !sort.StringsAreSorted(keys(doc)) {
		t.Errorf("keys not sorted: %v", keys(doc))
	}
	if v, _ := Lookup(doc, "invoice_id"); v != "2437000000123" {
		t.Errorf("invoice_id = %#v", v)
	}
	if v, _ := Lookup(doc, "date"); v != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("date = %#v", v)
	}
	created, _ := Lookup(doc, "created_at")
	ct, _ := Lookup(doc, "created_time")
	if created != ct {
		t.Errorf("created_at = %#v, created_time = %#v", created, ct)
	}
	if v, _ := Lookup(doc, "last_modified_time"); v != "not a date" {
		t.Errorf("unparseable date should be kept, got %#v", v)
	}

	items, _ := Lookup(doc, "line_items")
	item := items.([]any)[0].(bson.D)
	if got := keys(item); !reflect.DeepEqual(got, []string{"item_id", "quantity", "rate"}) {
		t.Errorf("line item keys = %v", got)
	}
	if q, _ := Lookup(item, "quantity"); q != int64(2) {
		t.Errorf("quantity = %#v", q)
	}

	if _, ok := raw["created_at"]; ok {
		t.Error("input record was mutated")
	}
}

func TestProcessInvoice_CreatedAtFallbackAndAbsence(t *testing.T) {
	doc := ProcessInvoice(context.Background(), map[string]any{"invoice_id": "1", "date": "2026-03-02"})
	if v, _ := Lookup(doc, "created_at"); v != time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) {
		t.Errorf("created_at fallback = %#v", v)
	}

	doc = ProcessInvoice(context.Background(), map[string]any{"invoice_id": "2"})
	if _, ok := Lookup(doc, "created_at"); ok {
		t.Error("created_at must not be fabricated")
	}
}

func TestProcessCreditNote(t *testing.T) {
	doc := ProcessCreditNote(context.Background(), map[string]any{
		"creditnote_id": float64(55),
		"date":          "2026-02-10",
	})
	if v, _ := Lookup(doc, "creditnote_id"); v != "55" {
		t.Errorf("creditnote_id = %#v", v)
	}
	if _, ok := Lookup(doc, "created_at"); !ok {
		t.Error("created_at missing")
	}
}

func TestProcessShipment(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]any
		wantID string
	}{
		{"shipment_order_id", map[string]any{"shipment_order_id": json.Number("10"), "shipmentorder_id": "11"}, "10"},
		{"shipmentorder_id", map[string]any{"shipmentorder_id": "11", "shipment_id": "12"}, "11"},
		{"shipment_id only", map[string]any{"shipment_id": "12"}, "12"},
		{"none", map[string]any{"date": "2026-03-01"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShipmentID(tt.raw); got != tt.wantID {
				t.Errorf("ShipmentID = %q, want %q", got, tt.wantID)
			}
			doc := ProcessShipment(context.Background(), tt.raw)
			if v, _ := Lookup(doc, "shipment_order_id"); v != tt.wantID {
				t.Errorf("shipment_order_id = %#v", v)
			}
			if _, ok := Lookup(doc, "shipment_id"); !ok {
				t.Error("shipment_id should default to empty string")
			}
		})
	}
}

func TestProcessShipment_ViewedMailTimestamps(t *testing.T) {
	doc := ProcessShipment(context.Background(), map[string]any{
		"shipment_id":            "1",
		"mail_first_viewed_time": "2026-03-03 08:00:00",
		"mail_last_viewed_time":  "2026-03-04T08:00:00+0530",
	})
	for _, field := range []string{"mail_first_viewed_time", "mail_last_viewed_time"} {
		v, _ := Lookup(doc, field)
		if _, ok := v.(time.Time); !ok {
			t.Errorf("%s = %#v, want time.Time", field, v)
		}
	}
}

func TestProcessNilRecord(t *testing.T) {
	doc := ProcessInvoice(context.Background(), nil)
	if v, _ := Lookup(doc, "invoice_id"); v != "" {
		t.Errorf("invoice_id = %#v", v)
	}
}

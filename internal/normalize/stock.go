// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package normalize

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

// StockEntry is the available-for-sale quantity of one item in one warehouse.
type StockEntry struct {
	ItemName      string
	ItemID        string
	SKU           string
	WarehouseName string
	Stock         decimal.Decimal
}

// Quantity keys seen in warehouse report rows, in priority order.
var stockQuantityFields = []string{
	"available_for_sale_stock",
	"quantity_available_for_sale",
	"available_for_sale",
	"actual_available_for_sale_stock",
}

// Nested warehouse lists seen on report rows, in priority order.
var warehouseListFields = []string{"warehouse_stock", "warehouses"}

// ExtractWarehouseStock finds the entry for warehouse in one report row.
// Three row shapes are understood, tried in order:
//  1. an array of per-warehouse entries under "warehouse_stock"
//  2. a nested "warehouses" list
//  3. a flat row describing a single warehouse
//
// Warehouse names match case-insensitively after trimming.
func ExtractWarehouseStock(row map[string]any, warehouse string) (StockEntry, bool) {
	entry := StockEntry{
		ItemName: strings.TrimSpace(IDString(row["item_name"])),
		ItemID:   IDString(row["item_id"]),
		SKU:      IDString(row["sku"]),
	}
	if entry.ItemName == "" {
		return StockEntry{}, false
	}

	for _, field := range warehouseListFields {
		list, ok := row[field].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			wh, ok := item.(map[string]any)
			if !ok || !sameWarehouse(wh["warehouse_name"], warehouse) {
				continue
			}
			qty, ok := quantity(wh)
			if !ok {
				continue
			}
			entry.WarehouseName = IDString(wh["warehouse_name"])
			entry.Stock = qty
			return entry, true
		}
	}

	if !sameWarehouse(row["warehouse_name"], warehouse) {
		return StockEntry{}, false
	}
	qty, ok := quantity(row)
	if !ok {
		return StockEntry{}, false
	}
	entry.WarehouseName = IDString(row["warehouse_name"])
	entry.Stock = qty
	return entry, true
}

func sameWarehouse(v any, want string) bool {
	name, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(want))
}

func quantity(m map[string]any) (decimal.Decimal, bool) {
	for _, field := range stockQuantityFields {
		if d, ok := ToDecimal(m[field]); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// ToDecimal reads a quantity given as a JSON number or a numeric string.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// SnapshotDate returns midnight UTC of t's calendar day in t's location.
func SnapshotDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StockDocument builds the zoho_stock document for one entry. productID is
// nil when no product could be matched.
func StockDocument(e StockEntry, date time.Time, productID *string, createdAt time.Time) bson.D {
	var pid any
	if productID != nil {
		pid = *productID
	}
	return SortRecursively(map[string]any{
		"item_name":      e.ItemName,
		"item_id":        e.ItemID,
		"sku":            e.SKU,
		"warehouse_name": e.WarehouseName,
		"stock":          e.Stock.InexactFloat64(),
		"date":           SnapshotDate(date),
		"product_id":     pid,
		"created_at":     createdAt.UTC(),
	}).(bson.D)
}

// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package normalize

import (
	"sort"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

// SortRecursively returns v with every mapping converted to a bson.D whose
// keys are in ascending order, recursing into nested documents and arrays.
// json.Number values become int64 when integral and float64 otherwise, so
// that they are stored as BSON numbers. Applying it twice gives the same
// result as applying it once.
func SortRecursively(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sortedDoc(len(val), func(yield func(string, any)) {
			for k, item := range val {
				yield(k, item)
			}
		})
	case bson.M:
		return sortedDoc(len(val), func(yield func(string, any)) {
			for k, item := range val {
				yield(k, item)
			}
		})
	case bson.D:
		return sortedDoc(len(val), func(yield func(string, any)) {
			for _, e := range val {
				yield(e.Key, e.Value)
			}
		})
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SortRecursively(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SortRecursively(item)
		}
		return out
	case json.Number:
		return numberValue(val)
	default:
		return v
	}
}

func sortedDoc(n int, each func(yield func(string, any))) bson.D {
	doc := make(bson.D, 0, n)
	each(func(k string, v any) {
		doc = append(doc, bson.E{Key: k, Value: SortRecursively(v)})
	})
	sort.Slice(doc, func(i, j int) bool { return doc[i].Key < doc[j].Key })
	return doc
}

// numberValue converts a decoded JSON number to int64 or float64, keeping
// the literal text only when it fits neither.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

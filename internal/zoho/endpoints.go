// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// Page is one page of a paginated Zoho list endpoint.
type Page struct {
	Number  int
	Records []map[string]any
	HasMore bool
}

// ListQuery holds the parameters of a list request.
type ListQuery struct {
	Page       int
	PerPage    int
	SortColumn string
	SortOrder  string
	DateStart  string
	DateEnd    string
	Extra      map[string]string
}

// listRequest holds parameters for a Zoho list or report request
type listRequest struct {
	path   string
	params url.Values
}

func newListRequest(path string) *listRequest {
	return &listRequest{path: path, params: url.Values{}}
}

// addParam adds a parameter to the request (only if non-empty)
func (r *listRequest) addParam(key, value string) *listRequest {
	if value != "" {
		r.params.Set(key, value)
	}
	return r
}

// addIntParam adds an integer parameter to the request (only if > 0)
func (r *listRequest) addIntParam(key string, value int) *listRequest {
	if value > 0 {
		r.params.Set(key, strconv.Itoa(value))
	}
	return r
}

func (r *listRequest) withQuery(q ListQuery) *listRequest {
	r.addIntParam("page", q.Page).
		addIntParam("per_page", q.PerPage).
		addParam("sort_column", q.SortColumn).
		addParam("sort_order", q.SortOrder).
		addParam("date_start", q.DateStart).
		addParam("date_end", q.DateEnd)
	for k, v := range q.Extra {
		r.addParam(k, v)
	}
	return r
}

// Record keys used by the list endpoints. Shipment orders have been served
// under several keys across Inventory API versions.
var (
	invoiceListKeys    = []string{"invoices"}
	creditNoteListKeys = []string{"creditnotes"}
	shipmentListKeys   = []string{"shipmentorders", "shipment_orders", "shipments"}
	reportListKeys     = []string{"warehouse_stock_info", "items", "inventory", "data"}

	shipmentDetailKeys = []string{"shipmentorder", "shipment_order", "shipment"}
)

// ListInvoices fetches one page of invoices from Zoho Books.
func (c *Client) ListInvoices(ctx context.Context, q ListQuery) (*Page, error) {
	return c.fetchPage(ctx, newListRequest("invoices").withQuery(q), q, invoiceListKeys)
}

// GetInvoice fetches the full invoice with line items.
func (c *Client) GetInvoice(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchDetail(ctx, "invoices/"+url.PathEscape(id), []string{"invoice"})
}

// ListCreditNotes fetches one page of credit notes from Zoho Books.
func (c *Client) ListCreditNotes(ctx context.Context, q ListQuery) (*Page, error) {
	return c.fetchPage(ctx, newListRequest("creditnotes").withQuery(q), q, creditNoteListKeys)
}

// GetCreditNote fetches one credit note.
func (c *Client) GetCreditNote(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchDetail(ctx, "creditnotes/"+url.PathEscape(id), []string{"creditnote"})
}

// ListShipmentOrders fetches one page of shipment orders from Zoho Inventory.
func (c *Client) ListShipmentOrders(ctx context.Context, q ListQuery) (*Page, error) {
	return c.fetchPage(ctx, newListRequest("shipmentorders").withQuery(q), q, shipmentListKeys)
}

// GetShipmentOrder fetches one shipment order.
func (c *Client) GetShipmentOrder(ctx context.Context, id string) (map[string]any, error) {
	return c.fetchDetail(ctx, "shipmentorders/"+url.PathEscape(id), shipmentDetailKeys)
}

// WarehouseReport fetches one page of the Inventory warehouse stock report for date (YYYY-MM-DD).
func (c *Client) WarehouseReport(ctx context.Context, date string, q ListQuery) (*Page, error) {
	req := newListRequest("reports/warehouse").withQuery(q).
		addParam("from_date", date).
		addParam("to_date", date)
	return c.fetchPage(ctx, req, q, reportListKeys)
}

func (c *Client) fetchPage(ctx context.Context, req *listRequest, q ListQuery, keys []string) (*Page, error) {
	body, err := c.MakeRequest(ctx, c.URL(req.path, req.params), c.maxRetries)
	if err != nil {
		return nil, err
	}

	page := &Page{Number: q.Page, Records: extractRecords(body, keys)}
	if more, ok := hasMorePage(body); ok {
		page.HasMore = more
	} else {
		page.HasMore = q.PerPage > 0 && len(page.Records) >= q.PerPage
	}
	return page, nil
}

func (c *Client) fetchDetail(ctx context.Context, path string, keys []string) (map[string]any, error) {
	body, err := c.MakeRequest(ctx, c.URL(path, nil), c.maxRetries)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if record, ok := body[key].(map[string]any); ok {
			return record, nil
		}
	}
	return nil, &RequestError{Kind: KindDecode, Status: 200, URL: redactURL(path), Err: fmt.Errorf("response has none of the keys %v", keys)}
}

// extractRecords returns the first list found under keys, keeping only objects.
func extractRecords(body map[string]any, keys []string) []map[string]any {
	for _, key := range keys {
		raw, ok := body[key].([]any)
		if !ok {
			continue
		}
		records := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records
	}
	return nil
}

// hasMorePage reads page_context.has_more_page when present.
func hasMorePage(body map[string]any) (bool, bool) {
	pc, ok := body["page_context"].(map[string]any)
	if !ok {
		return false, false
	}
	switch v := pc["has_more_page"].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	case json.Number:
		return v.String() != "0", true
	default:
		return false, false
	}
}

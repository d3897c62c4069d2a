// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/zohosync/internal/config"
)

// Route names reported by FakeZoho.Calls.
const (
	RouteToken            = "token"
	RouteInvoiceList      = "invoices.list"
	RouteInvoiceDetail    = "invoices.detail"
	RouteCreditNoteList   = "creditnotes.list"
	RouteCreditNoteDetail = "creditnotes.detail"
	RouteShipmentList     = "shipmentorders.list"
	RouteShipmentDetail   = "shipmentorders.detail"
	RouteWarehouseReport  = "reports.warehouse"
)

// FakeZohoToken is the access token handed out by the fake accounts endpoint.
const FakeZohoToken = "fake-access-token"

// FakeZohoOrgID is the organization id the fake expects on every request.
const FakeZohoOrgID = "60001"

type listPage struct {
	route string
	page  int
}

// FakeZoho is an in-process stand-in for the Zoho accounts, Books and
// Inventory APIs. List endpoints paginate the configured records with
// page/per_page and report page_context.has_more_page; detail endpoints look
// records up by id.
type FakeZoho struct {
	Server *httptest.Server

	mu          sync.Mutex
	invoices    []map[string]any
	creditNotes []map[string]any
	shipments   []map[string]any
	stockRows   []map[string]any
	failDetail  map[string]int
	failList    map[listPage]int
	tokenStatus int
	latency     time.Duration
	calls       map[string]int
	queries     map[string][]url.Values

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewFakeZoho starts the fake server and closes it on test cleanup.
func NewFakeZoho(t *testing.T) *FakeZoho {
	t.Helper()

	f := &FakeZoho{
		failDetail:  make(map[string]int),
		failList:    make(map[listPage]int),
		tokenStatus: http.StatusOK,
		calls:       make(map[string]int),
		queries:     make(map[string][]url.Values),
	}

	r := chi.NewRouter()
	r.Post("/oauth/v2/token", f.handleToken)
	r.Route("/books/v3", func(r chi.Router) {
		r.Get("/invoices", f.listHandler(RouteInvoiceList, "invoices", func() []map[string]any { return f.invoices }))
		r.Get("/invoices/{id}", f.detailHandler(RouteInvoiceDetail, "invoice", "invoice_id", func() []map[string]any { return f.invoices }))
		r.Get("/creditnotes", f.listHandler(RouteCreditNoteList, "creditnotes", func() []map[string]any { return f.creditNotes }))
		r.Get("/creditnotes/{id}", f.detailHandler(RouteCreditNoteDetail, "creditnote", "creditnote_id", func() []map[string]any { return f.creditNotes }))
	})
	r.Route("/inventory/v1", func(r chi.Router) {
		r.Get("/shipmentorders", f.listHandler(RouteShipmentList, "shipmentorders", func() []map[string]any { return f.shipments }))
		r.Get("/shipmentorders/{id}", f.detailHandler(RouteShipmentDetail, "shipmentorder", "shipment_order_id", func() []map[string]any { return f.shipments }))
		r.Get("/reports/warehouse", f.listHandler(RouteWarehouseReport, "warehouse_stock_info", func() []map[string]any { return f.stockRows }))
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns a Zoho configuration pointing every endpoint at the fake,
// with millisecond retry delays.
func (f *FakeZoho) Config() *config.ZohoConfig {
	return &config.ZohoConfig{
		AccountsURL:           f.Server.URL + "/oauth/v2/token",
		BooksURL:              f.Server.URL + "/books/v3",
		InventoryURL:          f.Server.URL + "/inventory/v1",
		ClientID:              "client",
		ClientSecret:          "secret",
		BooksRefreshToken:     "books-refresh",
		InventoryRefreshToken: "inventory-refresh",
		OrganizationID:        FakeZohoOrgID,
		MaxRetries:            3,
		RetryDelay:            time.Millisecond,
		RequestTimeout:        5 * time.Second,
		ConnectTimeout:        time.Second,
		MaxConnections:        10,
	}
}

// SetInvoices replaces the invoice records. Each needs an invoice_id.
func (f *FakeZoho) SetInvoices(records []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = records
}

// SetCreditNotes replaces the credit note records. Each needs a creditnote_id.
func (f *FakeZoho) SetCreditNotes(records []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditNotes = records
}

// SetShipments replaces the shipment order records. Each needs a shipment_order_id.
func (f *FakeZoho) SetShipments(records []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipments = records
}

// SetStockRows replaces the warehouse report rows.
func (f *FakeZoho) SetStockRows(rows []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockRows = rows
}

// FailDetail makes detail requests for id answer with status.
func (f *FakeZoho) FailDetail(id string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDetail[id] = status
}

// FailListPage makes requests for one page of a list route answer with status.
func (f *FakeZoho) FailListPage(route string, page, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList[listPage{route: route, page: page}] = status
}

// SetTokenStatus makes the token endpoint answer with status.
func (f *FakeZoho) SetTokenStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
}

// SetLatency delays every detail response, so concurrency caps become observable.
func (f *FakeZoho) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

// Calls returns how many requests hit route.
func (f *FakeZoho) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// TotalCalls returns the number of Books and Inventory requests, excluding
// token exchanges.
func (f *FakeZoho) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for route, n := range f.calls {
		if route != RouteToken {
			total += n
		}
	}
	return total
}

// Queries returns the query strings received on route, in arrival order.
func (f *FakeZoho) Queries(route string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]url.Values, len(f.queries[route]))
	copy(out, f.queries[route])
	return out
}

// PeakInFlight returns the highest number of concurrent detail requests seen.
func (f *FakeZoho) PeakInFlight() int {
	return int(f.peak.Load())
}

func (f *FakeZoho) record(route string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[route]++
	f.queries[route] = append(f.queries[route], r.URL.Query())
}

func (f *FakeZoho) handleToken(w http.ResponseWriter, r *http.Request) {
	f.record(RouteToken, r)
	f.mu.Lock()
	status := f.tokenStatus
	f.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]any{"error": "invalid_code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": FakeZohoToken,
		"expires_in":   3600,
		"token_type":   "Bearer",
	})
}

func (f *FakeZoho) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Zoho-oauthtoken "+FakeZohoToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 57, "message": "You are not authorized to perform this operation"})
		return false
	}
	if r.URL.Query().Get("organization_id") != FakeZohoOrgID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 6041, "message": "organization_id is required"})
		return false
	}
	return true
}

func (f *FakeZoho) listHandler(route, key string, records func() []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.record(route, r)
		if !f.authorized(w, r) {
			return
		}

		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 200)

		f.mu.Lock()
		if status, failing := f.failList[listPage{route: route, page: page}]; failing {
			f.mu.Unlock()
			writeJSON(w, status, map[string]any{"code": 1002, "message": "page unavailable"})
			return
		}
		all := records()
		start := (page - 1) * perPage
		if start > len(all) {
			start = len(all)
		}
		end := start + perPage
		if end > len(all) {
			end = len(all)
		}
		items := make([]map[string]any, end-start)
		copy(items, all[start:end])
		f.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"code":    0,
			"message": "success",
			key:       items,
			"page_context": map[string]any{
				"page":          page,
				"per_page":      perPage,
				"has_more_page": end < len(all),
			},
		})
	}
}

func (f *FakeZoho) detailHandler(route, key, idField string, records func() []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.record(route, r)
		if !f.authorized(w, r) {
			return
		}

		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}

		id := chi.URLParam(r, "id")

		f.mu.Lock()
		latency := f.latency
		status, failing := f.failDetail[id]
		var found map[string]any
		for _, rec := range records() {
			if idOf(rec[idField]) == id {
				found = rec
				break
			}
		}
		f.mu.Unlock()

		if latency > 0 {
			time.Sleep(latency)
		}
		if failing {
			writeJSON(w, status, map[string]any{"code": 1, "message": "detail unavailable"})
			return
		}
		if found == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": 1002, "message": "record does not exist"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "message": "success", key: found})
	}
}

func idOf(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
)

func TestRequestID_SetsCorrelationID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.CorrelationIDFromContext(r.Context())
	}))

	t.Run("incoming header kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen != "req-42" {
			t.Errorf("correlation id = %q, want req-42", seen)
		}
		if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
			t.Errorf("X-Request-Id = %q, want req-42", got)
		}
	})

	t.Run("generated when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" {
			t.Error("correlation id not set")
		}
		if rec.Header().Get("X-Request-Id") != seen {
			t.Errorf("header %q does not match correlation id %q", rec.Header().Get("X-Request-Id"), seen)
		}
	})
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	okBefore := testutil.ToFloat64(metrics.OpsRequests.WithLabelValues("GET", "/items/{id}", "418"))
	missBefore := testutil.ToFloat64(metrics.OpsRequests.WithLabelValues("GET", "unmatched", "404"))

	for _, path := range []string{"/items/1", "/items/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(metrics.OpsRequests.WithLabelValues("GET", "/items/{id}", "418")); got != okBefore+2 {
		t.Errorf("matched route count = %v, want %v", got, okBefore+2)
	}
	if got := testutil.ToFloat64(metrics.OpsRequests.WithLabelValues("GET", "unmatched", "404")); got != missBefore+1 {
		t.Errorf("unmatched count = %v, want %v", got, missBefore+1)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Requests: 2, Window: time.Minute})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

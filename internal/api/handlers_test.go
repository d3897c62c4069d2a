// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/zohosync/internal/metrics"
	"github.com/tomtom215/zohosync/internal/scheduler"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubJobs []scheduler.JobState

func (s stubJobs) Jobs() []scheduler.JobState { return s }

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) Response {
	t.Helper()
	var raw struct {
		Status   string          `json:"status"`
		Data     json.RawMessage `json:"data"`
		Metadata Metadata        `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if into != nil {
		if err := json.Unmarshal(raw.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return Response{Status: raw.Status, Metadata: raw.Metadata}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		db        Pinger
		wantCode  int
		wantState string
	}{
		{"database up", stubPinger{}, http.StatusOK, "healthy"},
		{"ping fails", stubPinger{err: errors.New("no reachable servers")}, http.StatusServiceUnavailable, "degraded"},
		{"no database", nil, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, NewHandler(tt.db, nil), "/healthz")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var hs HealthStatus
			decodeData(t, rec, &hs)
			if hs.Status != tt.wantState {
				t.Errorf("status = %q, want %q", hs.Status, tt.wantState)
			}
			if hs.DatabaseConnected != (tt.wantCode == http.StatusOK) {
				t.Errorf("database_connected = %v", hs.DatabaseConnected)
			}
		})
	}
}

func TestLive_IgnoresDatabase(t *testing.T) {
	rec := serve(t, NewHandler(stubPinger{err: errors.New("down")}, nil), "/livez")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestJobs(t *testing.T) {
	last := time.Date(2026, 3, 14, 10, 10, 0, 0, time.UTC)
	next := time.Date(2026, 3, 15, 10, 10, 0, 0, time.UTC)
	h := NewHandler(stubPinger{}, stubJobs{
		{ID: "credit_notes", Cron: "0 15 * * *", Timezone: "Asia/Kolkata", NextRunTime: next},
		{ID: "invoices", Cron: "40 15 * * *", Timezone: "Asia/Kolkata", NextRunTime: next,
			LastRunAt: &last, LastStatus: "error", LastError: "token refresh failed"},
	})

	rec := serve(t, h, "/api/v1/jobs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var jobs []JobStatus
	decodeData(t, rec, &jobs)
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].LastRunAt != nil {
		t.Errorf("credit_notes last_run_at = %v, want nil", jobs[0].LastRunAt)
	}
	if jobs[1].LastError != "token refresh failed" || !jobs[1].LastRunAt.Equal(last) {
		t.Errorf("invoices = %+v", jobs[1])
	}
	if !jobs[1].NextRunTime.Equal(next) {
		t.Errorf("next_run_time = %v, want %v", jobs[1].NextRunTime, next)
	}
}

func TestJobs_NoScheduler(t *testing.T) {
	rec := serve(t, NewHandler(stubPinger{}, nil), "/api/v1/jobs")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.RecordSyncRun("invoices", "success", time.Second)

	rec := serve(t, NewHandler(stubPinger{}, nil), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sync_job_runs_total") {
		t.Error("metrics output is missing sync_job_runs_total")
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		rec := serve(t, NewHandler(stubPinger{}, nil), "/livez")
		if rec.Header().Get("X-Request-Id") == "" {
			t.Error("X-Request-Id header not set")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.Header.Set("X-Request-Id", "ops-req-1")
		rec := httptest.NewRecorder()
		NewRouter(NewHandler(stubPinger{}, nil)).ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-Id"); got != "ops-req-1" {
			t.Errorf("X-Request-Id = %q, want ops-req-1", got)
		}
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := NewHandler(stubPinger{}, nil)
	if rec := serve(t, h, "/api/v1/jobs/invoices/run"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/v1/jobs status = %d, want 405", rec.Code)
	}
}

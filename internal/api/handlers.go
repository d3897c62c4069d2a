// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/zohosync/internal/logging"
)

// Response is the envelope of every JSON response.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata carries the response timestamp.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	Uptime            float64 `json:"uptime_seconds"`
}

// JobStatus is one entry of /api/v1/jobs.
type JobStatus struct {
	ID          string     `json:"id"`
	Cron        string     `json:"cron"`
	Timezone    string     `json:"timezone"`
	NextRunTime time.Time  `json:"next_run_time"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastStatus  string     `json:"last_status,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Health reports liveness and MongoDB connectivity. It returns 503 when the
// database does not answer a ping within pingTimeout.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	defer cancel()

	connected := h.db != nil && h.db.Ping(ctx) == nil

	code, status := http.StatusOK, "healthy"
	if !connected {
		code, status = http.StatusServiceUnavailable, "degraded"
	}

	h.respond(w, code, "success", HealthStatus{
		Status:            status,
		DatabaseConnected: connected,
		Uptime:            h.now().Sub(h.startTime).Seconds(),
	})
}

// Live always answers 200 while the process serves HTTP.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, "success", map[string]interface{}{
		"alive":          true,
		"uptime_seconds": h.now().Sub(h.startTime).Seconds(),
	})
}

// Jobs lists the scheduled sync jobs ordered by id.
func (h *Handler) Jobs(w http.ResponseWriter, _ *http.Request) {
	if h.jobs == nil {
		h.respond(w, http.StatusServiceUnavailable, "error", map[string]string{
			"message": "scheduler not running",
		})
		return
	}

	states := h.jobs.Jobs()
	out := make([]JobStatus, 0, len(states))
	for _, st := range states {
		out = append(out, JobStatus{
			ID:          st.ID,
			Cron:        st.Cron,
			Timezone:    st.Timezone,
			NextRunTime: st.NextRunTime,
			LastRunAt:   st.LastRunAt,
			LastStatus:  st.LastStatus,
			LastError:   st.LastError,
		})
	}
	h.respond(w, http.StatusOK, "success", out)
}

func (h *Handler) respond(w http.ResponseWriter, code int, status string, data interface{}) {
	body, err := json.Marshal(&Response{
		Status:   status,
		Data:     data,
		Metadata: Metadata{Timestamp: h.now().UTC()},
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

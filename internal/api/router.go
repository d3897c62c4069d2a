// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/zohosync/internal/middleware"
	"github.com/tomtom215/zohosync/internal/scheduler"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobLister is satisfied by *scheduler.Scheduler.
type JobLister interface {
	Jobs() []scheduler.JobState
}

// Handler serves the operations endpoints.
type Handler struct {
	db          Pinger
	jobs        JobLister
	pingTimeout time.Duration
	startTime   time.Time
	now         func() time.Time
}

// NewHandler creates a handler. jobs may be nil when no scheduler runs.
func NewHandler(db Pinger, jobs JobLister) *Handler {
	return &Handler{
		db:          db,
		jobs:        jobs,
		pingTimeout: 3 * time.Second,
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// NewRouter builds the chi router for the operations listener.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimit(middleware.OpsRateLimit))

	r.Get("/healthz", h.Health)
	r.Get("/livez", h.Live)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", h.Jobs)
	})

	return r
}

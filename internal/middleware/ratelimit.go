// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig is a per-client request budget.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// OpsRateLimit allows frequent probes and scrapes while capping abuse of the
// listener (1000/min per client IP).
var OpsRateLimit = RateLimitConfig{Requests: 1000, Window: time.Minute}

// RateLimit limits requests per client IP. chi's RealIP middleware must run
// first when the listener sits behind a proxy.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.LimitByIP(cfg.Requests, cfg.Window)
}

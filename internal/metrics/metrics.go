// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package metrics holds the Prometheus instrumentation for ZohoSync:
// outbound Zoho calls, the circuit breaker, the sync jobs, the scheduler and
// notification delivery. All collectors register with the default registry
// and are served by promhttp at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Zoho API Metrics
	ZohoRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_requests_total",
			Help: "Total number of Zoho API requests by final outcome",
		},
		[]string{"service", "outcome"}, // outcome: "ok", "rejected", "rate_limited", "server_error", "transport", "decode", "circuit_open"
	)

	ZohoRequestAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_request_attempts_total",
			Help: "Total number of HTTP attempts against Zoho by status code",
		},
		[]string{"service", "status_code"},
	)

	ZohoRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoho_request_duration_seconds",
			Help:    "Duration of a Zoho request including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	ZohoRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_retries_total",
			Help: "Total number of Zoho request retries by reason",
		},
		[]string{"service", "reason"}, // reason: "rate_limited", "server_error", "transport"
	)

	ZohoRateLimiterWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoho_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limiter token",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"budget"},
	)

	ZohoTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_token_refreshes_total",
			Help: "Total number of OAuth refresh-token exchanges",
		},
		[]string{"service", "result"}, // result: "success", "failure"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync Job Metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_job_runs_total",
			Help: "Total number of sync job runs by final status",
		},
		[]string{"job", "status"}, // status: "success", "partial", "skipped", "failed"
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Duration of sync job runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}, // Sync runs can take many minutes
		},
		[]string{"job"},
	)

	SyncDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_documents_total",
			Help: "Total number of documents handled by sync jobs",
		},
		[]string{"job", "action"}, // action: "fetched", "inserted", "deleted", "failed", "skipped"
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job",
		},
		[]string{"job"},
	)

	// Scheduler Metrics
	SchedulerMisfires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_misfires_total",
			Help: "Total number of job occurrences skipped because they were past the misfire grace period",
		},
		[]string{"job"},
	)

	SchedulerExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_executions_total",
			Help: "Total number of scheduler executions by result",
		},
		[]string{"job", "result"}, // result: "success", "error", "panic"
	)

	// Dependency Metrics
	DependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_up",
			Help: "Whether a backing dependency answered its last health check (1=up, 0=down)",
		},
		[]string{"dependency"},
	)

	// Operations Listener Metrics
	OpsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_http_requests_total",
			Help: "Total number of requests served by the operations listener",
		},
		[]string{"method", "route", "status"},
	)

	OpsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ops_http_request_duration_seconds",
			Help:    "Duration of operations listener requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
		},
		[]string{"route"},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "result"}, // result: "success", "error", "skipped"
	)
)

// RecordZohoRequest records the final outcome of one MakeRequest call.
func RecordZohoRequest(service, outcome string, duration time.Duration) {
	ZohoRequestsTotal.WithLabelValues(service, outcome).Inc()
	ZohoRequestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordZohoAttempt records one HTTP attempt. A status of 0 means the request
// never produced a response.
func RecordZohoAttempt(service string, status int) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	ZohoRequestAttempts.WithLabelValues(service, code).Inc()
}

// RecordZohoRetry records a retry and its reason.
func RecordZohoRetry(service, reason string) {
	ZohoRetries.WithLabelValues(service, reason).Inc()
}

// RecordRateLimiterWait records time spent blocked in a job budget's rate limiter.
func RecordRateLimiterWait(budget string, wait time.Duration) {
	ZohoRateLimiterWait.WithLabelValues(budget).Observe(wait.Seconds())
}

// RecordTokenRefresh records an OAuth token exchange.
func RecordTokenRefresh(service string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ZohoTokenRefreshes.WithLabelValues(service, result).Inc()
}

// RecordSyncRun records the end of a sync job run.
func RecordSyncRun(job, status string, duration time.Duration) {
	SyncRuns.WithLabelValues(job, status).Inc()
	SyncDuration.WithLabelValues(job).Observe(duration.Seconds())
	if status == "success" || status == "partial" || status == "skipped" {
		SyncLastSuccess.WithLabelValues(job).Set(float64(time.Now().Unix()))
	}
}

// RecordSyncDocuments adds n documents for the given job and action.
func RecordSyncDocuments(job, action string, n int) {
	if n <= 0 {
		return
	}
	SyncDocuments.WithLabelValues(job, action).Add(float64(n))
}

// RecordMisfire records a skipped job occurrence.
func RecordMisfire(job string) {
	SchedulerMisfires.WithLabelValues(job).Inc()
}

// RecordExecution records a scheduler execution result.
func RecordExecution(job, result string) {
	SchedulerExecutions.WithLabelValues(job, result).Inc()
}

// RecordNotification records a notification delivery attempt.
func RecordNotification(channel, result string) {
	NotificationsSent.WithLabelValues(channel, result).Inc()
}

// RecordDependencyUp records the result of a dependency health check.
func RecordDependencyUp(dependency string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	DependencyUp.WithLabelValues(dependency).Set(v)
}

// RecordOpsRequest records one request to the operations listener.
func RecordOpsRequest(method, route string, status int, duration time.Duration) {
	OpsRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	OpsRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

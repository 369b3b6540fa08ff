// Package telemetry registers the Prometheus metrics exposed on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics use the gin route template as path label, never the raw URL.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Audit metrics.
//
// AuditEntityRecordsTotal counts entity-change rows staged by the flush hooks,
// by action. Rows of rolled back transactions are counted too.
//
// AccessLogWritesTotal counts background access-log writes by result:
// "ok", "error" or "dropped" (circuit open).
var (
	AuditEntityRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entity_records_staged_total",
			Help: "Entity-change audit rows staged during flush, by action.",
		},
		[]string{"action"},
	)

	AccessLogWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_access_log_writes_total",
			Help: "Background access-log writes, by result.",
		},
		[]string{"result"},
	)

	AccessLogWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_access_log_write_duration_seconds",
			Help:    "Duration of background access-log writes.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// HardwareStatusChangesTotal counts lifecycle transitions, by target status.
var HardwareStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hardware_status_changes_total",
		Help: "Hardware status transitions, by new status.",
	},
	[]string{"status"},
)

package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_items_added_total",
		Help: "Total number of inventory add/update commits",
	})

	ItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_items_removed_total",
		Help: "Total number of inventory removals",
	})

	ItemsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_items_deleted_total",
		Help: "Total number of inventory records deleted",
	})

	MutationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_mutation_failures_total",
		Help: "Total number of rejected inventory mutations",
	}, []string{"reason"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_tool_calls_total",
		Help: "Total number of tool calls handled by the interpreter",
	}, []string{"tool", "outcome"})

	VoiceSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_sessions_active",
		Help: "Number of currently open voice sessions",
	})

	VisionScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_scans_total",
		Help: "Total number of vision extraction calls",
	}, []string{"mode", "outcome"})

	VisionScanLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_scan_latency_seconds",
		Help:    "Latency of vision extraction calls",
		Buckets: prometheus.DefBuckets,
	})

	QuotaRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Total number of operations blocked by the usage gate",
	}, []string{"feature"})

	BackgroundTasksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "background_tasks_dropped_total",
		Help: "Total number of best-effort tasks dropped because the queue was full",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

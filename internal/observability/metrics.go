package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namegate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "namegate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	reconcilePasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namegate",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Network reconciliation passes by outcome.",
		},
		[]string{"outcome"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "namegate",
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Network reconciliation pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	clientInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namegate",
			Subsystem: "client",
			Name:      "installs_total",
			Help:      "Data clients installed into the holder.",
		},
		[]string{"network", "fallback"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			reconcilePasses,
			reconcileDuration,
			clientInstalls,
			pageviews,
			reportedErrors,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordReconcilePass(outcome string, duration time.Duration) {
	RegisterMetrics()
	reconcilePasses.WithLabelValues(outcome).Inc()
	reconcileDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordClientInstall(network string, fallback bool) {
	RegisterMetrics()
	clientInstalls.WithLabelValues(network, strconv.FormatBool(fallback)).Inc()
}

package observability

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	analyticsOnce    sync.Once
	analyticsEnabled atomic.Bool

	pageviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namegate",
			Subsystem: "analytics",
			Name:      "pageviews_total",
			Help:      "Page views by resolved page.",
		},
		[]string{"page"},
	)
)

// SetupAnalytics enables pageview collection. Safe to call more than once.
func SetupAnalytics() {
	analyticsOnce.Do(func() {
		RegisterMetrics()
		analyticsEnabled.Store(true)
		log.Info().Msg("analytics_started")
	})
}

// RecordPageview counts one resolved page. It is a no-op until SetupAnalytics runs.
func RecordPageview(page string) {
	if !analyticsEnabled.Load() {
		return
	}
	pageviews.WithLabelValues(page).Inc()
}

package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReporterConfig identifies the error-reporting project.
type ReporterConfig struct {
	Key       string
	ProjectID string
}

var (
	reporterOnce sync.Once
	reporterMu   sync.RWMutex
	reporter     *errorReporter

	reportedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namegate",
			Subsystem: "errors",
			Name:      "reported_total",
			Help:      "Errors sent to the error reporter.",
		},
		[]string{"source"},
	)
)

type errorReporter struct {
	cfg    ReporterConfig
	logger zerolog.Logger
}

// StartReporter starts the process-wide error reporter once; later calls are ignored.
func StartReporter(cfg ReporterConfig) {
	reporterOnce.Do(func() {
		RegisterMetrics()
		r := &errorReporter{
			cfg: cfg,
			logger: log.Logger.With().
				Str("component", "error_reporter").
				Str("project", strings.TrimSpace(cfg.ProjectID)).
				Logger(),
		}
		reporterMu.Lock()
		reporter = r
		reporterMu.Unlock()
		r.logger.Info().Bool("keyed", strings.TrimSpace(cfg.Key) != "").Msg("error_reporter_started")
	})
}

// ReportError forwards err to the reporter when one is running.
func ReportError(source string, err error) {
	if err == nil {
		return
	}
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r == nil {
		return
	}
	reportedErrors.WithLabelValues(source).Inc()
	r.logger.Error().Str("source", source).Err(err).Msg("error_reported")
}

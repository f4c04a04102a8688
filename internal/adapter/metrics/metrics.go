package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loanapp"

// LoggerMetrics holds the Prometheus metrics of the error logger.
type LoggerMetrics struct {
	RecordsTotal    *prometheus.CounterVec
	ChannelFailures *prometheus.CounterVec
	FallbacksTotal  prometheus.Counter
	StoredTotal     prometheus.Counter
}

// NewLoggerMetrics creates the logger metrics and registers them with reg.
// A nil registerer leaves them unregistered.
func NewLoggerMetrics(reg prometheus.Registerer) *LoggerMetrics {
	f := promauto.With(reg)
	return &LoggerMetrics{
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errorlog",
			Name:      "records_total",
			Help:      "Total number of captured error records by level.",
		}, []string{"level"}),
		ChannelFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errorlog",
			Name:      "channel_failures_total",
			Help:      "Total number of failed delivery attempts by channel.",
		}, []string{"channel"}), // channel: console, localStore, api, sentry
		FallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errorlog",
			Name:      "api_fallbacks_total",
			Help:      "Total number of records redirected to the local store after a failed API delivery.",
		}),
		StoredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errorlog",
			Name:      "stored_total",
			Help:      "Total number of records appended to the local store.",
		}),
	}
}

// CollectorMetrics holds all Prometheus metrics for the report collector.
type CollectorMetrics struct {
	ReportsTotal      *prometheus.CounterVec
	BytesTotal        prometheus.Counter
	APIKeyCacheHits   prometheus.Counter
	APIKeyCacheMisses prometheus.Counter
}

// NewCollectorMetrics initializes and registers the collector metrics.
func NewCollectorMetrics(reg prometheus.Registerer) *CollectorMetrics {
	f := promauto.With(reg)
	return &CollectorMetrics{
		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "reports_total",
			Help:      "Total number of received error reports by status.",
		}, []string{"status"}), // status: accepted, error_parse, error_size, error_sink, error_media_type
		BytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "bytes_total",
			Help:      "Total number of bytes received.",
		}),
		APIKeyCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "pyramidview"

// Registry holds every collector this binary exports.
var Registry = prometheus.NewRegistry()

var (
	loaderCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "loader_create_total",
			Help:      "Count of loader construction attempts by source type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	manifestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "offsets_manifest_fetch_total",
			Help:      "Count of offsets manifest fetches by result (found, missing, failed).",
		},
		[]string{"result"},
	)
	staleLoadCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "stale_load_discarded_total",
			Help:      "Count of load results discarded because a newer source was selected.",
		},
	)
	statsCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "channel_stats_cache_total",
			Help:      "Count of channel statistics lookups by cache result (hit, miss).",
		},
		[]string{"result"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(loaderCounter)
		Registry.MustRegister(manifestCounter)
		Registry.MustRegister(staleLoadCounter)
		Registry.MustRegister(statsCacheCounter)
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordLoaderCreate records the outcome ("ok", "unsupported", "error") of a loader construction.
func RecordLoaderCreate(sourceType, outcome string) {
	loaderCounter.WithLabelValues(sourceType, outcome).Inc()
}

// RecordManifestFetch records an offsets manifest fetch result.
func RecordManifestFetch(result string) {
	manifestCounter.WithLabelValues(result).Inc()
}

// RecordStaleLoad records a load result dropped in favour of a newer one.
func RecordStaleLoad() {
	staleLoadCounter.Inc()
}

// RecordStatsCache records a stats cache hit or miss.
func RecordStatsCache(result string) {
	statsCacheCounter.WithLabelValues(result).Inc()
}

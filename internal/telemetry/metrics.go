package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncDuration observes repository syncs and checkouts by outcome
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octool_sync_duration_seconds",
			Help:    "Duration of repository sync operations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"repo", "outcome"},
	)

	// SyncErrors counts failed syncs by error kind
	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octool_sync_errors_total",
			Help: "Total number of repository sync errors",
		},
		[]string{"repo", "kind"},
	)

	// CatalogCacheHits counts catalog reads served without touching the file
	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "octool_catalog_cache_hits_total",
			Help: "Total number of catalog loads served from the snapshot cache",
		},
	)

	// Resolutions counts component resolutions by result
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octool_resolutions_total",
			Help: "Total number of component resolutions",
		},
		[]string{"component", "channel", "result"},
	)

	// ValidationRuns counts validator runs by verdict
	ValidationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octool_validation_runs_total",
			Help: "Total number of validator runs by result",
		},
		[]string{"result"},
	)

	// ValidationDuration observes validator run time
	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "octool_validation_duration_seconds",
			Help:    "Duration of validator runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LastSessionTimestamp is set when a session finishes
	LastSessionTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "octool_last_session_timestamp_seconds",
			Help: "Unix time the last session finished",
		},
	)
)

// ObserveSync records the duration and outcome of one sync
func ObserveSync(repo, outcome string, d time.Duration) {
	SyncDuration.WithLabelValues(repo, outcome).Observe(d.Seconds())
}

// WriteMetricsFile writes all registered metrics in the textfile
// collector format
func WriteMetricsFile(path string) error {
	if path == "" {
		return nil
	}
	LastSessionTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

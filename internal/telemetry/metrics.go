package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// JobsProcessed counts finished jobs by type and terminal status
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnbridge",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs that reached a terminal status",
		},
		[]string{"job_type", "status"},
	)

	// VulnerabilitiesMerged counts merged findings by outcome
	VulnerabilitiesMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnbridge",
			Name:      "vulnerabilities_merged_total",
			Help:      "Total number of vulnerabilities merged into the store",
		},
		[]string{"action"}, // created, updated, reopened
	)

	// AssetsMerged counts assets created or refreshed during reconciliation
	AssetsMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vulnbridge",
			Name:      "assets_merged_total",
			Help:      "Total number of assets created or refreshed",
		},
		[]string{"action"}, // created, updated
	)

	// ParseDuration measures scan file parse time per parser
	ParseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vulnbridge",
			Name:      "parse_duration_seconds",
			Help:      "Time spent parsing scan files",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"parser"},
	)

	// QueueDepth tracks undelivered payloads per job type queue
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vulnbridge",
			Name:      "queue_depth",
			Help:      "Number of undelivered payloads per job type queue",
		},
		[]string{"job_type"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		prometheus.DefaultRegisterer.Register(JobsProcessed)
		prometheus.DefaultRegisterer.Register(VulnerabilitiesMerged)
		prometheus.DefaultRegisterer.Register(AssetsMerged)
		prometheus.DefaultRegisterer.Register(ParseDuration)
		prometheus.DefaultRegisterer.Register(QueueDepth)
	})
}

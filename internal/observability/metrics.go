// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	QuotesFetched      prometheus.Counter
	QuotesAccepted     prometheus.Counter
	QuotesRejected     prometheus.Counter
	UpsertFailures     prometheus.Counter
	UpstreamFailures   prometheus.Counter
	IngestRunsTotal    *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	LastSuccessfulPoll prometheus.Gauge

	// Snapshot metrics
	SnapshotsRecorded      prometheus.Counter
	SnapshotRecordsWritten prometheus.Counter

	// Query metrics
	HistoryQueriesTotal prometheus.Counter
	HistoryDeletesTotal *prometheus.CounterVec
	StatsComputedTotal  prometheus.Counter
	QueryDuration       *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coin_market_history"
	}

	return &Metrics{
		// Ingestion metrics
		QuotesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "quotes_fetched_total",
			Help:      "Total number of quotes fetched from the upstream markets API",
		}),
		QuotesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "quotes_accepted_total",
			Help:      "Total number of quotes that passed validation and were upserted",
		}),
		QuotesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "quotes_rejected_total",
			Help:      "Total number of quotes dropped by validation",
		}),
		UpsertFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "upsert_failures_total",
			Help:      "Total number of per-key upsert failures",
		}),
		UpstreamFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "upstream_failures_total",
			Help:      "Total number of failed upstream fetches",
		}),
		IngestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingest runs by status",
		}, []string{"status"}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "run_duration_seconds",
			Help:      "Ingest run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_successful_poll_timestamp_seconds",
			Help:      "Unix timestamp of the last successful ingest run",
		}),

		// Snapshot metrics
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of snapshot operations performed",
		}),
		SnapshotRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "records_written_total",
			Help:      "Total number of history records written by snapshots",
		}),

		// Query metrics
		HistoryQueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "history_queries_total",
			Help:      "Total number of history queries served",
		}),
		HistoryDeletesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "history_deletes_total",
			Help:      "Total number of history delete requests by outcome",
		}, []string{"outcome"}),
		StatsComputedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "stats_computed_total",
			Help:      "Total number of per-asset stats computations",
		}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query engine operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Cache metrics
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of summary cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of summary cache misses",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordIngestRun records the outcome of one ingest run.
func (m *Metrics) RecordIngestRun(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.IngestRunsTotal.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(durationSeconds)
}

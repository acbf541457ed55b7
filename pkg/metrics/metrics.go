// Package metrics exposes the Prometheus collectors of the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics counts pipeline outcomes and times external classification.
type ImportMetrics struct {
	RowsImported    prometheus.Counter
	RowsDuplicated  prometheus.Counter
	RowsErrored     prometheus.Counter
	JobsFailed      prometheus.Counter
	ClassifyLatency prometheus.Histogram
}

// New registers the import collectors on reg and returns them. Pass a fresh
// registry in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		RowsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fiflow",
			Name:      "import_rows_imported_total",
			Help:      "Transactions persisted by import jobs.",
		}),
		RowsDuplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fiflow",
			Name:      "import_rows_duplicated_total",
			Help:      "Transactions skipped as exact duplicates.",
		}),
		RowsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fiflow",
			Name:      "import_rows_errored_total",
			Help:      "Rows rejected with an ImportError.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fiflow",
			Name:      "import_jobs_failed_total",
			Help:      "Import jobs that ended in the failed state.",
		}),
		ClassifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fiflow",
			Name:      "classification_call_seconds",
			Help:      "Latency of external classification calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.RowsImported, m.RowsDuplicated, m.RowsErrored, m.JobsFailed, m.ClassifyLatency)
	return m
}

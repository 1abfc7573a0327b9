// Package metrics exposes Prometheus counters/histograms for job runs. No
// teacher equivalent exists (beads ships no metrics server); grounded on
// jordigilh-kubernaut's go.mod, the only pack repo pairing otel tracing
// with prometheus/client_golang the way this package does.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "databridge",
		Name:      "records_processed_total",
		Help:      "Records processed by a job, by job/source/entity.",
	}, []string{"job", "source", "entity"})

	RecordsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "databridge",
		Name:      "records_created_total",
		Help:      "Records created by a job, by job/source/entity.",
	}, []string{"job", "source", "entity"})

	RecordsUpdated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "databridge",
		Name:      "records_updated_total",
		Help:      "Records updated by a job, by job/source/entity.",
	}, []string{"job", "source", "entity"})

	RecordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "databridge",
		Name:      "records_skipped_unchanged_total",
		Help:      "Records skipped because the content hash was unchanged.",
	}, []string{"job", "source", "entity"})

	RecordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "databridge",
		Name:      "record_errors_total",
		Help:      "Per-record errors recovered during a job run.",
	}, []string{"job", "source", "entity"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "databridge",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of a job run.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job", "source", "entity", "status"})
)

func init() {
	prometheus.MustRegister(RecordsProcessed, RecordsCreated, RecordsUpdated, RecordsSkipped, RecordErrors, JobDuration)
}

// Observe records a completed job's duration and status label ("completed"
// or "failed").
func Observe(job, source, entity, status string, d time.Duration) {
	JobDuration.WithLabelValues(job, source, entity, status).Observe(d.Seconds())
}

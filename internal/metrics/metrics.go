// Package metrics exposes Prometheus metrics for fetching and merging headlines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"headlines/internal/model"
)

// Fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

var (
	// SourceFetchesTotal counts fetch attempts by source type and outcome.
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_source_fetches_total",
			Help: "Total number of source fetch attempts",
		},
		[]string{"source", "outcome"},
	)

	// RecordsFetchedTotal counts normalized records returned by adapters.
	RecordsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_records_fetched_total",
			Help: "Total number of records returned by source adapters",
		},
		[]string{"source"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "headlines_source_fetch_duration_seconds",
			Help:    "Duration of source fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 8, 10},
		},
		[]string{"source"},
	)

	MergeAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headlines_merge_admitted_total",
		Help: "Total number of incoming records admitted by merge",
	})

	MergeDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headlines_merge_duplicates_total",
		Help: "Total number of incoming records rejected as duplicates or stale",
	})

	StoredRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "headlines_stored_records",
		Help: "Number of records currently held by the store",
	})

	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headlines_persist_failures_total",
		Help: "Total number of failed store writes",
	})
)

// RecordFetch records one adapter run.
func RecordFetch(source model.SourceType, records, errs int, d time.Duration) {
	outcome := OutcomeSuccess
	switch {
	case errs > 0 && records == 0:
		outcome = OutcomeFailure
	case errs > 0:
		outcome = OutcomePartial
	}
	SourceFetchesTotal.WithLabelValues(string(source), outcome).Inc()
	RecordsFetchedTotal.WithLabelValues(string(source)).Add(float64(records))
	SourceFetchDuration.WithLabelValues(string(source)).Observe(d.Seconds())
}

// RecordMerge records the result of merging incoming records into the store.
func RecordMerge(admitted, rejected, stored int) {
	MergeAdmittedTotal.Add(float64(admitted))
	MergeDuplicatesTotal.Add(float64(rejected))
	StoredRecords.Set(float64(stored))
}

// RecordPersistFailure counts a failed store write.
func RecordPersistFailure() {
	PersistFailuresTotal.Inc()
}

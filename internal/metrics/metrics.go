package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts resource cache reads by class and result (hit, miss, expired)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_cache_lookups_total",
			Help: "Resource cache lookups by resource class and result",
		},
		[]string{"class", "result"},
	)

	// CacheInvalidations counts entries removed by prefix invalidation
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_cache_invalidated_entries_total",
			Help: "Cache entries removed by invalidation, by key prefix",
		},
		[]string{"prefix"},
	)

	// UpstreamRequests counts requests sent to the FIO API
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_upstream_requests_total",
			Help: "Requests sent to the upstream FIO API by resource class, method and status code",
		},
		[]string{"class", "method", "status"},
	)

	// UpstreamRequestDuration tracks upstream round trip time in seconds
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fio_dashboard_upstream_request_duration_seconds",
			Help:    "Upstream FIO API request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"class", "method"},
	)

	// SharedRequests counts callers that joined an in-flight request instead of issuing their own
	SharedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_shared_requests_total",
			Help: "Fetches served by joining an identical in-flight request",
		},
		[]string{"class"},
	)

	// AbortedRequests counts fetches that ended cancelled or superseded
	AbortedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_aborted_requests_total",
			Help: "Fetches that were cancelled or superseded before completing",
		},
		[]string{"class"},
	)

	// FilterPersistFailures counts filter selection writes that failed
	FilterPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fio_dashboard_filter_persist_failures_total",
			Help: "Filter selection persistence failures",
		},
	)

	// ImportedFiles counts FIO result files processed by the importer
	ImportedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fio_dashboard_imported_files_total",
			Help: "FIO result files processed by the importer by outcome",
		},
		[]string{"status"},
	)
)

func RecordCacheLookup(class, result string) {
	CacheLookups.WithLabelValues(class, result).Inc()
}

func RecordInvalidation(prefix string, removed int) {
	if removed <= 0 {
		return
	}
	CacheInvalidations.WithLabelValues(prefix).Add(float64(removed))
}

func RecordUpstreamRequest(class, method string, status int, durationSeconds float64) {
	UpstreamRequests.WithLabelValues(class, method, strconv.Itoa(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(class, method).Observe(durationSeconds)
}

func RecordShared(class string) {
	SharedRequests.WithLabelValues(class).Inc()
}

func RecordAborted(class string) {
	AbortedRequests.WithLabelValues(class).Inc()
}

func RecordPersistFailure() {
	FilterPersistFailures.Inc()
}

func RecordImport(status string) {
	ImportedFiles.WithLabelValues(status).Inc()
}

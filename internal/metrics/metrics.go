// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal      *prometheus.CounterVec
	fetchRetriesTotal      prometheus.Counter
	recordsStoredTotal     *prometheus.CounterVec
	duplicatesSkippedTotal *prometheus.CounterVec
	attachmentsParsedTotal *prometheus.CounterVec
	indexFailuresTotal     *prometheus.CounterVec
	activeDetailWorkers    prometheus.Gauge
	crawlDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_fetched_total",
				Help: "Pages fetched, labeled by source, kind (list/detail) and outcome.",
			},
			[]string{"source", "kind", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Retry attempts performed by the fetcher.",
			},
		)

		recordsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_stored_total",
				Help: "New records persisted, labeled by source.",
			},
			[]string{"source"},
		)

		duplicatesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_duplicates_skipped_total",
				Help: "Detail pages skipped because their identity was already stored.",
			},
			[]string{"source"},
		)

		attachmentsParsedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_attachments_parsed_total",
				Help: "Attachment parse attempts, labeled by kind (pdf/docx/ocr) and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		indexFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_index_failures_total",
				Help: "Documents the indexing sink rejected, labeled by source.",
			},
			[]string{"source"},
		)

		activeDetailWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_detail_workers",
				Help: "Detail-processing units currently in flight.",
			},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_crawl_duration_seconds",
				Help:    "Wall time of a full source crawl.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"source"},
		)
	})
}

// PageFetched counts one fetched page.
func PageFetched(source, kind, outcome string) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(source, kind, outcome).Inc()
	}
}

// FetchRetried counts one retry attempt.
func FetchRetried() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// RecordStored counts one persisted record.
func RecordStored(source string) {
	if recordsStoredTotal != nil {
		recordsStoredTotal.WithLabelValues(source).Inc()
	}
}

// DuplicateSkipped counts one dedup-gate short circuit.
func DuplicateSkipped(source string) {
	if duplicatesSkippedTotal != nil {
		duplicatesSkippedTotal.WithLabelValues(source).Inc()
	}
}

// AttachmentParsed counts one attachment parse attempt.
func AttachmentParsed(kind, outcome string) {
	if attachmentsParsedTotal != nil {
		attachmentsParsedTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// IndexFailed counts one rejected index push.
func IndexFailed(source string) {
	if indexFailuresTotal != nil {
		indexFailuresTotal.WithLabelValues(source).Inc()
	}
}

// DetailWorkerStarted marks a detail unit entering flight.
func DetailWorkerStarted() {
	if activeDetailWorkers != nil {
		activeDetailWorkers.Inc()
	}
}

// DetailWorkerFinished marks a detail unit leaving flight.
func DetailWorkerFinished() {
	if activeDetailWorkers != nil {
		activeDetailWorkers.Dec()
	}
}

// CrawlFinished observes the duration of one source crawl.
func CrawlFinished(source string, d time.Duration) {
	if crawlDurationSeconds != nil {
		crawlDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

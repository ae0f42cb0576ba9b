// Package metrics provides Prometheus metrics for the shipping pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	RecordsAppended prometheus.Counter
	RecordsDropped  *prometheus.CounterVec // reason: serialize | encode | upload_failed

	BatchesShipped prometheus.Counter
	BatchesFailed  *prometheus.CounterVec // kind: transient | permanent
	BytesShipped   prometheus.Counter
	UploadRetries  prometheus.Counter

	FlushDuration prometheus.Histogram
	BufferBytes   prometheus.Gauge
}

var defaultMetrics *Metrics

// Init initializes the global metrics. Call once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "logship"
	}

	m := &Metrics{
		RecordsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Total number of records appended to the buffer",
		}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total number of records dropped",
		}, []string{"reason"}),
		BatchesShipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_shipped_total",
			Help:      "Total number of batches uploaded to storage",
		}),
		BatchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Total number of batches dropped after upload failure",
		}, []string{"kind"}),
		BytesShipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_shipped_total",
			Help:      "Total object bytes uploaded to storage",
		}),
		UploadRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Total number of upload retry attempts",
		}),
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time to encode and upload one drained batch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		BufferBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_bytes",
			Help:      "Advisory size of the in-memory buffer",
		}),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance, or nil before Init.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus scraping. Blocks until
// the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the message relay
type Metrics struct {
	// Datagram metrics
	DatagramsReceived  prometheus.Counter
	DatagramsPersisted prometheus.Counter
	DatagramsDropped   prometheus.Counter
	DecodeErrors       prometheus.Counter
	QueueSize          prometheus.Gauge

	// Store metrics
	StoreErrors   prometheus.Counter
	StoreRecords  prometheus.Gauge
	MergeDuration prometheus.Histogram

	// Submission metrics
	Submissions  *prometheus.CounterVec
	RateLimited  prometheus.Counter
	DatagramSize prometheus.Histogram

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_datagrams_received_total",
			Help: "Total number of datagrams received by the listener",
		}),
		DatagramsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_datagrams_persisted_total",
			Help: "Total number of datagrams merged into the store",
		}),
		DatagramsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_datagrams_dropped_total",
			Help: "Total number of datagrams dropped because the queue was full",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_decode_errors_total",
			Help: "Total number of datagrams that failed to decode",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_queue_size",
			Help: "Current number of datagrams waiting to be persisted",
		}),

		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_store_errors_total",
			Help: "Total number of failed store merges",
		}),
		StoreRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_store_records",
			Help: "Number of records in the store document",
		}),
		MergeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_store_merge_duration_seconds",
			Help:    "Time spent rewriting the store document",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_submissions_total",
			Help: "Total number of form submissions by outcome",
		}, []string{"outcome"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Total number of submissions rejected by the rate limiter",
		}),
		DatagramSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_datagram_size_bytes",
			Help:    "Size of relayed datagram payloads",
			Buckets: prometheus.ExponentialBuckets(32, 2, 12), // 32B to 64KB
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordDatagramReceived increments the datagrams received counter
func (m *Metrics) RecordDatagramReceived() {
	m.DatagramsReceived.Inc()
}

// RecordDatagramPersisted records a successful merge and its duration
func (m *Metrics) RecordDatagramPersisted(mergeSeconds float64) {
	m.DatagramsPersisted.Inc()
	m.MergeDuration.Observe(mergeSeconds)
}

// RecordDatagramDropped increments the dropped datagrams counter
func (m *Metrics) RecordDatagramDropped() {
	m.DatagramsDropped.Inc()
}

// RecordDecodeError increments the decode errors counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordStoreError increments the store errors counter
func (m *Metrics) RecordStoreError() {
	m.StoreErrors.Inc()
}

// SetQueueSize sets the current queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetStoreRecords sets the number of records in the document
func (m *Metrics) SetStoreRecords(count int) {
	m.StoreRecords.Set(float64(count))
}

// RecordSubmission counts a form submission by outcome
// (relayed, invalid, too_large, relay_failed)
func (m *Metrics) RecordSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

// RecordRelayedDatagram observes the size of a datagram handed to the listener
func (m *Metrics) RecordRelayedDatagram(sizeBytes int) {
	m.DatagramSize.Observe(float64(sizeBytes))
}

// RecordRateLimited increments the rate limited counter
func (m *Metrics) RecordRateLimited() {
	m.RateLimited.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

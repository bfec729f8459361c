package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "stream_producer"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Producer = "producer"
	Worker   = "worker"
	Client   = "client"

	// Retry kinds
	RetryRequest = "request"
	RetryRecord  = "record"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple producer instances.
type Labels struct {
	Stream        string // Stream (or topic) the producer writes to
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Stream != "" {
		labels["stream"] = l.Stream
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Producer façade
	recordsEnqueued prometheus.Counter
	putsRejected    prometheus.Counter
	queueDepth      prometheus.Gauge

	// Worker pool
	workersRunning prometheus.Gauge
	workerPanics   prometheus.Counter
	batchesFlushed prometheus.Counter
	batchSize      prometheus.Histogram
	flushDuration  prometheus.Histogram

	// Delivery outcome
	recordsDelivered prometheus.Counter
	recordFailures   *prometheus.CounterVec // by error_code
	retries          *prometheus.CounterVec // by kind
	requestFailures  prometheus.Counter

	// Remote client calls
	putRecordsCalls    *prometheus.CounterVec // by status
	putRecordsDuration prometheus.Histogram
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., stream), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recordsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Producer,
			Name:      "records_enqueued_total",
			Help:      "Total number of records accepted into the work queue",
		}),
		putsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Producer,
			Name:      "puts_rejected_total",
			Help:      "Total number of put calls rejected because the producer was shut down",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Producer,
			Name:      "queue_depth",
			Help:      "Number of items waiting in the work queue",
		}),
		workersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "running",
			Help:      "Number of worker goroutines currently running",
		}),
		workerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "panics_total",
			Help:      "Total number of worker loops that died with a panic",
		}),
		batchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "batches_flushed_total",
			Help:      "Total number of buffers flushed to the remote stream",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "batch_size",
			Help:      "Number of records per flushed batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "flush_duration_seconds",
			Help:      "Time to flush a batch including all retries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		recordsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "records_delivered_total",
			Help:      "Total number of records accepted by the remote stream",
		}),
		recordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "record_failures_total",
			Help:      "Total number of records reported as failed by error code",
		}, []string{"error_code"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "retries_total",
			Help:      "Total number of retries by kind (request or record)",
		}, []string{"kind"}),
		requestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Worker,
			Name:      "request_failures_total",
			Help:      "Total number of batches abandoned after a request-level failure",
		}),
		putRecordsCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Client,
			Name:      "put_records_calls_total",
			Help:      "Total PutRecords calls by status",
		}, []string{"status"}),
		putRecordsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Client,
			Name:      "put_records_duration_seconds",
			Help:      "PutRecords call duration in seconds",
			// Buckets cover typical remote latencies: 1ms, 5ms, 10ms, 25ms, 50ms,
			// 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}

	err := errors.Join(
		reg.Register(m.recordsEnqueued),
		reg.Register(m.putsRejected),
		reg.Register(m.queueDepth),
		reg.Register(m.workersRunning),
		reg.Register(m.workerPanics),
		reg.Register(m.batchesFlushed),
		reg.Register(m.batchSize),
		reg.Register(m.flushDuration),
		reg.Register(m.recordsDelivered),
		reg.Register(m.recordFailures),
		reg.Register(m.retries),
		reg.Register(m.requestFailures),
		reg.Register(m.putRecordsCalls),
		reg.Register(m.putRecordsDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// AddRecordsEnqueued counts records accepted by Put or PutAll.
func (m *Metrics) AddRecordsEnqueued(n int) {
	if m == nil {
		return
	}
	m.recordsEnqueued.Add(float64(n))
}

// IncPutsRejected counts a put rejected after shutdown.
func (m *Metrics) IncPutsRejected() {
	if m == nil {
		return
	}
	m.putsRejected.Inc()
}

// SetQueueDepth updates the work queue gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// IncWorkersRunning increments the running workers gauge.
func (m *Metrics) IncWorkersRunning() {
	if m == nil {
		return
	}
	m.workersRunning.Inc()
}

// DecWorkersRunning decrements the running workers gauge.
func (m *Metrics) DecWorkersRunning() {
	if m == nil {
		return
	}
	m.workersRunning.Dec()
}

// IncWorkerPanics counts a worker loop that died with a panic.
func (m *Metrics) IncWorkerPanics() {
	if m == nil {
		return
	}
	m.workerPanics.Inc()
}

// ObserveFlush records a completed flush of size records.
func (m *Metrics) ObserveFlush(size int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.batchesFlushed.Inc()
	m.batchSize.Observe(float64(size))
	m.flushDuration.Observe(durationSeconds)
}

// AddRecordsDelivered counts records accepted by the remote stream.
func (m *Metrics) AddRecordsDelivered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDelivered.Add(float64(n))
}

// IncRecordFailure counts a record reported as failed with the given code.
func (m *Metrics) IncRecordFailure(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.recordFailures.WithLabelValues(code).Inc()
}

// IncRetry counts a retry of the given kind (RetryRequest or RetryRecord).
func (m *Metrics) IncRetry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

// IncRequestFailure counts a batch abandoned after a request-level failure.
func (m *Metrics) IncRequestFailure() {
	if m == nil {
		return
	}
	m.requestFailures.Inc()
}

// RecordPutRecords records a PutRecords call outcome.
func (m *Metrics) RecordPutRecords(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.putRecordsCalls.WithLabelValues(status).Inc()
	m.putRecordsDuration.Observe(durationSeconds)
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Stream:        "events",
				Environment:   "production",
				Region:        "us-east-1",
				CloudProvider: "aws",
			},
			expected: prometheus.Labels{
				"stream":         "events",
				"environment":    "production",
				"region":         "us-east-1",
				"cloud_provider": "aws",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Stream:      "events",
				Environment: "staging",
			},
			expected: prometheus.Labels{
				"stream":      "events",
				"environment": "staging",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.labels.toPrometheusLabels())
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Stream: "events", Environment: "test"})
	require.NoError(t, err)

	m.SetQueueDepth(7)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "stream_producer_producer_queue_depth" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())
		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "events", labelMap["stream"])
		require.Equal(t, "test", labelMap["environment"])
	}
	require.True(t, found, "queue depth metric not gathered")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.AddRecordsEnqueued(1)
		m.IncPutsRejected()
		m.SetQueueDepth(1)
		m.IncWorkersRunning()
		m.DecWorkersRunning()
		m.IncWorkerPanics()
		m.ObserveFlush(10, 0.1)
		m.AddRecordsDelivered(10)
		m.IncRecordFailure("code")
		m.IncRetry(RetryRequest)
		m.IncRequestFailure()
		m.RecordPutRecords(nil, 0.1)
	})
}

func TestMetrics_ProducerCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.AddRecordsEnqueued(5)
	m.AddRecordsEnqueued(2)
	m.IncPutsRejected()
	m.SetQueueDepth(4)

	require.Equal(t, float64(7), testutil.ToFloat64(m.recordsEnqueued))
	require.Equal(t, float64(1), testutil.ToFloat64(m.putsRejected))
	require.Equal(t, float64(4), testutil.ToFloat64(m.queueDepth))
}

func TestMetrics_WorkerGauges(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.IncWorkersRunning()
	m.IncWorkersRunning()
	m.DecWorkersRunning()
	m.IncWorkerPanics()

	require.Equal(t, float64(1), testutil.ToFloat64(m.workersRunning))
	require.Equal(t, float64(1), testutil.ToFloat64(m.workerPanics))
}

func TestMetrics_ObserveFlush(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveFlush(10, 0.2)
	m.ObserveFlush(9, 0.1)

	require.Equal(t, float64(2), testutil.ToFloat64(m.batchesFlushed))
	require.Equal(t, 1, testutil.CollectAndCount(m.batchSize))
	require.Equal(t, 1, testutil.CollectAndCount(m.flushDuration))
}

func TestMetrics_DeliveryOutcome(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.AddRecordsDelivered(8)
	m.AddRecordsDelivered(0)
	m.IncRecordFailure("AccessDeniedException")
	m.IncRecordFailure("AccessDeniedException")
	m.IncRecordFailure("")
	m.IncRetry(RetryRequest)
	m.IncRetry(RetryRecord)
	m.IncRetry(RetryRecord)
	m.IncRequestFailure()

	require.Equal(t, float64(8), testutil.ToFloat64(m.recordsDelivered))
	require.Equal(t, float64(2), testutil.ToFloat64(m.recordFailures.WithLabelValues("AccessDeniedException")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.recordFailures.WithLabelValues("unknown")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.retries.WithLabelValues(RetryRequest)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.retries.WithLabelValues(RetryRecord)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.requestFailures))
}

func TestMetrics_RecordPutRecords(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordPutRecords(nil, 0.01)
	m.RecordPutRecords(nil, 0.02)
	m.RecordPutRecords(errors.New("boom"), 0.5)

	require.Equal(t, float64(2), testutil.ToFloat64(m.putRecordsCalls.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.putRecordsCalls.WithLabelValues(StatusError)))
	require.Equal(t, 1, testutil.CollectAndCount(m.putRecordsDuration))
}

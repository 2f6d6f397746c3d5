package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnSeparateRegistries(t *testing.T) {
	// Two instances must not collide when each gets its own registry
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDatagramReceived()
	m.RecordDatagramReceived()
	m.RecordDatagramPersisted(0.002)
	m.RecordDecodeError()
	m.RecordDatagramDropped()
	m.RecordStoreError()
	m.SetQueueSize(3)
	m.SetStoreRecords(42)
	m.RecordSubmission("relayed")
	m.RecordSubmission("relayed")
	m.RecordSubmission("invalid")
	m.RecordRateLimited()
	m.RecordHTTPRequest("POST", "/message", "302", 0.01)
	m.RecordHTTPError("GET", "/missing", "client_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatagramsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatagramsPersisted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatagramsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueSize))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.StoreRecords))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("relayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/message", "302")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrors.WithLabelValues("GET", "/missing", "client_error")))
}

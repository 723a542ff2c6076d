package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRefresh(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RecordRefresh("built", 200*time.Millisecond)
	r.RecordRefresh("built", time.Second)
	r.RecordRefresh("error", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.RefreshesTotal.WithLabelValues("built")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RefreshesTotal.WithLabelValues("error")))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "rabbitflow_refresh_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestSetGraphSize(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.SetGraphSize(7, 3, 2, 4)

	assert.Equal(t, 7.0, testutil.ToFloat64(r.Generation))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.GraphNodes.WithLabelValues("queue")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.GraphNodes.WithLabelValues("exchange")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.GraphLinks))
}

func TestObserveBroker(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.ObserveBroker("queues", 200, time.Millisecond)
	r.ObserveBroker("queues", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.BrokerRequestsTotal.WithLabelValues("queues", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BrokerRequestsTotal.WithLabelValues("queues", "0")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RecordHTTPRequest(http.MethodGet, "/api/view", http.StatusOK, time.Millisecond)

	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `rabbitflow_http_requests_total{method="GET",route="/api/view",status="200"} 1`))
}

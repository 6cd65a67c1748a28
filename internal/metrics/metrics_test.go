package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesMetrics(t *testing.T) {
	oldRegistry := Registry
	Registry = prometheus.NewRegistry()
	defer func() { Registry = oldRegistry }()

	Registry.MustRegister(collectors.NewGoCollector())

	m := InitMetrics("test-instance")
	m.UploadsTotal.Add(3)
	m.UploadRetries.Inc()
	m.UploadFailures.WithLabelValues("transport").Inc()
	m.TokenRequests.Add(2)
	m.EventsDebounced.Add(7)
	m.PendingPaths.Set(2)
	m.UploadDuration.Observe(0.25)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	for _, metric := range []string{
		"barsync_uploads_total",
		"barsync_upload_retries_total",
		"barsync_upload_failures_total",
		"barsync_token_requests_total",
		"barsync_events_debounced_total",
		"barsync_pending_paths",
		"barsync_upload_duration_seconds",
		"go_goroutines",
	} {
		assert.Contains(t, out, metric)
	}

	assert.Contains(t, out, `barsync_uploads_total{instance="test-instance"} 3`)
	assert.Contains(t, out, `barsync_pending_paths{instance="test-instance"} 2`)
	assert.Contains(t, out, `barsync_upload_failures_total{instance="test-instance",reason="transport"} 1`)
}

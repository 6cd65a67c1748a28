package syncer_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jareeve/ace-bar-file-syncer/internal/config"
	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
	"github.com/jareeve/ace-bar-file-syncer/internal/syncer"
	"github.com/jareeve/ace-bar-file-syncer/testutil"
)

func newTestMetrics(t *testing.T) *metrics.SyncerMetrics {
	t.Helper()
	oldRegistry := metrics.Registry
	metrics.Registry = prometheus.NewRegistry()
	t.Cleanup(func() { metrics.Registry = oldRegistry })
	return metrics.InitMetrics("test-instance")
}

func testConfig(dir, baseURL string) *config.Config {
	return &config.Config{
		WatchDirectory:      dir,
		FileExtension:       ".bar",
		APIBaseURL:          baseURL,
		ClientID:            "client-1",
		ClientSecret:        "secret-1",
		APIKey:              "key-1",
		InstanceID:          "inst-1",
		IntegrationServerID: "is-1",
		DebounceMs:          100,
	}
}

// TestEndToEndUpload covers the full pipeline: a BAR file appears in the
// watch directory, the debounce window elapses, one token is acquired and
// the file is uploaded with it.
func TestEndToEndUpload(t *testing.T) {
	server := testutil.NewAppConnect(t, []string{"tok-A"}, []int{http.StatusOK})
	dir := t.TempDir()

	s, err := syncer.New(testConfig(dir, server.Server.URL), newTestMetrics(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	testutil.WriteBARFile(t, dir, "order-flow.bar")

	require.Eventually(t, func() bool {
		return server.UploadCalls() == 1
	}, 5*time.Second, 50*time.Millisecond, "expected exactly one upload")

	assert.Equal(t, 1, server.TokenCalls())
	auth, urlPath, _ := server.LastUpload()
	assert.Equal(t, "Bearer tok-A", auth)
	assert.Equal(t, "/api/v1/bar-files/order-flow.bar.bar", urlPath)

	// No retry happened.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, server.UploadCalls())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("syncer did not shut down")
	}
}

// TestFailedUploadDoesNotAffectOtherFiles exercises per-attempt isolation:
// a terminal failure for one file leaves uploads for other files working.
func TestFailedUploadDoesNotAffectOtherFiles(t *testing.T) {
	server := testutil.NewAppConnect(t, []string{"tok-A"},
		[]int{http.StatusInternalServerError, http.StatusOK})
	dir := t.TempDir()

	s, err := syncer.New(testConfig(dir, server.Server.URL), newTestMetrics(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() { cancel(); <-done }()
	time.Sleep(100 * time.Millisecond)

	testutil.WriteBARFile(t, dir, "first.bar")
	require.Eventually(t, func() bool {
		return server.UploadCalls() == 1
	}, 5*time.Second, 50*time.Millisecond)

	testutil.WriteBARFile(t, dir, "second.bar")
	require.Eventually(t, func() bool {
		return server.UploadCalls() == 2
	}, 5*time.Second, 50*time.Millisecond, "a failed upload must not block later files")

	auth, urlPath, _ := server.LastUpload()
	assert.Equal(t, "Bearer tok-A", auth)
	assert.Equal(t, "/api/v1/bar-files/second.bar.bar", urlPath)
}

func TestRunReturnsErrorForMissingDirectory(t *testing.T) {
	server := testutil.NewAppConnect(t, []string{"tok-A"}, []int{http.StatusOK})

	s, err := syncer.New(testConfig("/nonexistent-watch-dir", server.Server.URL), newTestMetrics(t))
	require.NoError(t, err)

	err = s.Run(context.Background())
	assert.Error(t, err)
}

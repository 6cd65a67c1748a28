package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
	"github.com/jareeve/ace-bar-file-syncer/internal/watch"
)

func newTestMetrics(t *testing.T) *metrics.SyncerMetrics {
	t.Helper()
	oldRegistry := metrics.Registry
	metrics.Registry = prometheus.NewRegistry()
	t.Cleanup(func() { metrics.Registry = oldRegistry })
	return metrics.InitMetrics("test-instance")
}

// startDispatcher runs a dispatcher over a fresh temp dir and returns the
// dir and a channel of fired triggers.
func startDispatcher(t *testing.T, ext string) (string, <-chan string) {
	t.Helper()

	dir := t.TempDir()
	fired := make(chan string, 10)
	m := newTestMetrics(t)
	debouncer := watch.NewDebouncer(50*time.Millisecond, func(p string) { fired <- p }, m.PendingPaths)

	dispatcher, err := watch.NewDispatcher(dir, ext, debouncer, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		debouncer.CancelAll()
		_ = dispatcher.Close()
		<-done
	})

	// Give the watcher a moment to establish before files are written.
	time.Sleep(100 * time.Millisecond)
	return dir, fired
}

func TestDispatcherForwardsMatchingFiles(t *testing.T) {
	dir, fired := startDispatcher(t, ".bar")

	path := filepath.Join(dir, "order-flow.bar")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	select {
	case p := <-fired:
		assert.Equal(t, path, p)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a trigger for the created file")
	}
}

func TestDispatcherIgnoresOtherExtensions(t *testing.T) {
	dir, fired := startDispatcher(t, ".bar")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case p := <-fired:
		t.Fatalf("unexpected trigger for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDispatcherMatchesCaseInsensitively(t *testing.T) {
	dir, fired := startDispatcher(t, ".bar")

	path := filepath.Join(dir, "ORDER.BAR")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	select {
	case p := <-fired:
		assert.Equal(t, path, p)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a trigger for the created file")
	}
}

func TestDispatcherCoalescesRewrites(t *testing.T) {
	dir, fired := startDispatcher(t, ".bar")

	path := filepath.Join(dir, "order-flow.bar")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a trigger")
	}
	select {
	case <-fired:
		t.Fatal("rapid rewrites must coalesce into one trigger")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatcherRunFailsForMissingDirectory(t *testing.T) {
	debouncer := watch.NewDebouncer(time.Second, func(string) {}, nil)
	dispatcher, err := watch.NewDispatcher("/nonexistent-dir-for-test", ".bar", debouncer, newTestMetrics(t))
	require.NoError(t, err)
	defer func() { _ = dispatcher.Close() }()

	err = dispatcher.Run(context.Background())
	assert.Error(t, err)
}

// Package metrics provides Prometheus metrics for the BAR file syncer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry for all syncer metrics.
var Registry = prometheus.NewRegistry()

// SyncerMetrics holds all Prometheus metrics for the upload pipeline.
type SyncerMetrics struct {
	EventsDebounced prometheus.Counter     // qualifying watcher events handed to the debouncer
	PendingPaths    prometheus.Gauge       // paths currently inside their quiet period
	TokenRequests   prometheus.Counter     // external token acquisition calls
	UploadsTotal    prometheus.Counter     // successful uploads
	UploadRetries   prometheus.Counter     // 401-triggered retries
	UploadFailures  *prometheus.CounterVec // terminal failures, labeled by reason
	UploadDuration  prometheus.Histogram
}

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// InitMetrics initializes all metrics with the App Connect instance ID as a
// constant label.
func InitMetrics(instanceID string) *SyncerMetrics {
	constLabels := prometheus.Labels{
		"instance": instanceID,
	}

	return &SyncerMetrics{
		EventsDebounced: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name:        "barsync_events_debounced_total",
			Help:        "Qualifying file change events handed to the debouncer",
			ConstLabels: constLabels,
		}),
		PendingPaths: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name:        "barsync_pending_paths",
			Help:        "Paths currently awaiting their debounce quiet period",
			ConstLabels: constLabels,
		}),
		TokenRequests: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name:        "barsync_token_requests_total",
			Help:        "External token acquisition calls issued",
			ConstLabels: constLabels,
		}),
		UploadsTotal: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name:        "barsync_uploads_total",
			Help:        "BAR files uploaded successfully",
			ConstLabels: constLabels,
		}),
		UploadRetries: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name:        "barsync_upload_retries_total",
			Help:        "Uploads retried after a stale-credential rejection",
			ConstLabels: constLabels,
		}),
		UploadFailures: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name:        "barsync_upload_failures_total",
			Help:        "Terminal upload failures by reason",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		UploadDuration: promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
			Name:        "barsync_upload_duration_seconds",
			Help:        "End-to-end duration of successful upload attempts",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

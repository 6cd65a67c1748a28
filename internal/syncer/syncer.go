// Package syncer wires the watcher, debouncer and upload coordinator into
// the running daemon.
package syncer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jareeve/ace-bar-file-syncer/internal/api"
	"github.com/jareeve/ace-bar-file-syncer/internal/config"
	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
	"github.com/jareeve/ace-bar-file-syncer/internal/token"
	"github.com/jareeve/ace-bar-file-syncer/internal/uploader"
	"github.com/jareeve/ace-bar-file-syncer/internal/watch"
)

// Syncer owns the upload pipeline for one watch directory.
type Syncer struct {
	cfg         *config.Config
	metrics     *metrics.SyncerMetrics
	debouncer   *watch.Debouncer
	dispatcher  *watch.Dispatcher
	coordinator *uploader.Coordinator
}

// New builds the pipeline from the given configuration.
func New(cfg *config.Config, m *metrics.SyncerMetrics) (*Syncer, error) {
	client := api.NewClient(cfg.APIBaseURL, api.Credentials{
		InstanceID:   cfg.InstanceID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		APIKey:       cfg.APIKey,
	})

	tokens := token.NewCache(func(ctx context.Context) (string, error) {
		m.TokenRequests.Inc()
		return client.RequestToken(ctx)
	})

	coordinator := uploader.New(tokens, client, m)

	// Each trigger runs on its own timer goroutine, so an upload that is
	// still in flight when the same path fires again simply overlaps. That
	// is accepted behavior, not prevented; the token cache is the only
	// state shared between attempts.
	debouncer := watch.NewDebouncer(cfg.Debounce(), func(path string) {
		// Coordinator failures are logged there and isolated per attempt.
		_, _ = coordinator.Upload(context.Background(), path)
	}, m.PendingPaths)

	dispatcher, err := watch.NewDispatcher(cfg.WatchDirectory, cfg.FileExtension, debouncer, m)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		cfg:         cfg,
		metrics:     m,
		debouncer:   debouncer,
		dispatcher:  dispatcher,
		coordinator: coordinator,
	}, nil
}

// Run watches until ctx is cancelled, then shuts down: pending debounce
// timers are cancelled without firing, the watcher is closed, and attempts
// already past their trigger run to completion unawaited.
func (s *Syncer) Run(ctx context.Context) error {
	var metricsSrv *http.Server
	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Info().Str("addr", s.cfg.MetricsAddr).Msg("serving metrics")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	err := s.dispatcher.Run(ctx)

	s.debouncer.CancelAll()
	if closeErr := s.dispatcher.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("failed to close watcher")
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info().Msg("syncer stopped")
	return err
}

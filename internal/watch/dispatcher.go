// Package watch turns raw file system notifications into debounced per-path
// upload triggers.
package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
)

// Dispatcher receives events from the file system watcher, filters them by
// extension and forwards qualifying paths to the debouncer.
type Dispatcher struct {
	dir       string
	ext       string
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	metrics   *metrics.SyncerMetrics
}

// NewDispatcher creates a dispatcher watching dir for files with the given
// extension (including the leading dot).
func NewDispatcher(dir, ext string, debouncer *Debouncer, m *metrics.SyncerMetrics) (*Dispatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Dispatcher{
		dir:       dir,
		ext:       ext,
		fsw:       fsw,
		debouncer: debouncer,
		metrics:   m,
	}, nil
}

// Run starts watching and dispatches events until ctx is cancelled or the
// watcher is closed. Watcher-level errors are logged and never terminate
// the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.fsw.Add(d.dir); err != nil {
		return fmt.Errorf("watch %s: %w", d.dir, err)
	}
	log.Info().Str("dir", d.dir).Str("ext", d.ext).Msg("watching for BAR file changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-d.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !d.matches(event.Name) {
				continue
			}
			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("file change detected")
			d.metrics.EventsDebounced.Inc()
			d.debouncer.Schedule(event.Name)

		case err, ok := <-d.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Close stops the underlying file system watcher.
func (d *Dispatcher) Close() error {
	return d.fsw.Close()
}

func (d *Dispatcher) matches(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), strings.ToLower(d.ext))
}

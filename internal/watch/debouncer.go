package watch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// pending identifies one armed quiet-period timer so a fired timer can tell
// whether it has been superseded by a newer Schedule call.
type pending struct {
	timer *time.Timer
}

// Debouncer collapses bursts of change notifications for the same path into
// a single trigger after a quiet period. Entries for different paths are
// fully independent.
type Debouncer struct {
	window  time.Duration
	trigger func(path string)
	gauge   prometheus.Gauge

	mu     sync.Mutex
	timers map[string]*pending
}

// NewDebouncer creates a debouncer that invokes trigger once per path after
// window of silence. The gauge, when non-nil, tracks the number of paths
// currently inside their quiet period.
func NewDebouncer(window time.Duration, trigger func(path string), gauge prometheus.Gauge) *Debouncer {
	return &Debouncer{
		window:  window,
		trigger: trigger,
		gauge:   gauge,
		timers:  make(map[string]*pending),
	}
}

// Schedule arms the quiet-period timer for path. An already pending timer
// for the same path is cancelled and replaced, restarting the quiet period.
func (d *Debouncer) Schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.timers[path]; ok {
		p.timer.Stop()
	}
	p := &pending{}
	p.timer = time.AfterFunc(d.window, func() { d.fire(path, p) })
	d.timers[path] = p
	d.syncGauge()
}

func (d *Debouncer) fire(path string, p *pending) {
	d.mu.Lock()
	cur, ok := d.timers[path]
	if !ok || cur != p {
		// Superseded by a newer Schedule call, or cancelled.
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.syncGauge()
	d.mu.Unlock()

	d.trigger(path)
}

// CancelAll cancels every pending timer without firing callbacks. Used at
// shutdown.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, path)
	}
	d.syncGauge()
}

// syncGauge publishes the pending count. Caller holds d.mu.
func (d *Debouncer) syncGauge() {
	if d.gauge != nil {
		d.gauge.Set(float64(len(d.timers)))
	}
}

// Len returns the number of paths currently awaiting their quiet period.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

package deck

import (
	"time"

	"github.com/padbridge/padctl/internal/midimsg"
)

// Debounce defaults. The window is tunable configuration; the prune policy
// is amortized, one sweep once the map grows past the threshold.
const (
	DefaultDebounceWindow = 180 * time.Millisecond
	debounceMaxEntries    = 512
	debounceRetention     = 10 * time.Second
)

type debounceKey struct {
	Cell     int
	SourceID int
	Trigger  midimsg.Trigger
}

// Debouncer suppresses repeated discrete triggers inside a short window per
// (cell, source, trigger) key. Continuous data always passes: every sample of
// live position or delta matters.
type Debouncer struct {
	window time.Duration
	last   map[debounceKey]time.Time
	now    func() time.Time
}

// NewDebouncer creates a debouncer with the given re-fire window
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		last:   make(map[debounceKey]time.Time),
		now:    time.Now,
	}
}

// ShouldDispatch reports whether the event may reach its plugin. A
// suppressed repeat does not move the window: it stays anchored to the last
// accepted dispatch.
func (d *Debouncer) ShouldDispatch(ev midimsg.Event, cell int) bool {
	if ev.Trigger.Continuous() {
		return true
	}

	key := debounceKey{Cell: cell, SourceID: ev.SourceID, Trigger: ev.Trigger}
	now := d.now()
	if accepted, ok := d.last[key]; ok && now.Sub(accepted) < d.window {
		return false
	}
	d.last[key] = now

	if len(d.last) > debounceMaxEntries {
		d.prune(now)
	}
	return true
}

// prune drops entries older than the retention horizon in one sweep
func (d *Debouncer) prune(now time.Time) {
	for key, accepted := range d.last {
		if now.Sub(accepted) > debounceRetention {
			delete(d.last, key)
		}
	}
}

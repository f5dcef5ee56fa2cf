package deck

import (
	"testing"
	"time"

	"github.com/padbridge/padctl/internal/midimsg"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDebouncer() (*Debouncer, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDebouncer(DefaultDebounceWindow)
	d.now = clock.now
	return d, clock
}

func buttonEvent(sourceID int, note uint8) midimsg.Event {
	return midimsg.Event{
		SourceID: sourceID,
		Trigger:  midimsg.Trigger{Kind: midimsg.TriggerNote, Number: note},
		Value:    127,
	}
}

func TestDebounceSuppressesRapidRepeats(t *testing.T) {
	d, clock := newTestDebouncer()
	ev := buttonEvent(1, 60)

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.ShouldDispatch(ev, 0) {
			accepted++
		}
		clock.advance(10 * time.Millisecond)
	}
	if accepted != 1 {
		t.Errorf("accepted %d dispatches inside the window, want 1", accepted)
	}
}

func TestDebouncePassesSpacedRepeats(t *testing.T) {
	d, clock := newTestDebouncer()
	ev := buttonEvent(1, 60)

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.ShouldDispatch(ev, 0) {
			accepted++
		}
		clock.advance(DefaultDebounceWindow + time.Millisecond)
	}
	if accepted != 5 {
		t.Errorf("accepted %d spaced dispatches, want 5", accepted)
	}
}

func TestDebounceWindowAnchoredOnAcceptance(t *testing.T) {
	d, clock := newTestDebouncer()
	ev := buttonEvent(1, 60)

	if !d.ShouldDispatch(ev, 0) {
		t.Fatal("first dispatch suppressed")
	}
	// a suppressed repeat must not extend the window
	clock.advance(100 * time.Millisecond)
	if d.ShouldDispatch(ev, 0) {
		t.Fatal("repeat inside window accepted")
	}
	clock.advance(100 * time.Millisecond)
	if !d.ShouldDispatch(ev, 0) {
		t.Error("dispatch suppressed after original window elapsed")
	}
}

func TestDebounceKeysAreIndependent(t *testing.T) {
	d, _ := newTestDebouncer()

	if !d.ShouldDispatch(buttonEvent(1, 60), 0) {
		t.Fatal("first dispatch suppressed")
	}
	if !d.ShouldDispatch(buttonEvent(1, 61), 1) {
		t.Error("different trigger suppressed")
	}
	if !d.ShouldDispatch(buttonEvent(2, 60), 0) {
		t.Error("different source suppressed")
	}
}

func TestDebounceContinuousAlwaysPasses(t *testing.T) {
	d, _ := newTestDebouncer()
	ev := midimsg.Event{
		SourceID: 1,
		Trigger:  midimsg.Trigger{Kind: midimsg.TriggerControlChange, Number: 7},
		Value:    64,
	}

	for i := 0; i < 5; i++ {
		if !d.ShouldDispatch(ev, 0) {
			t.Fatal("continuous event suppressed")
		}
	}
}

func TestDebouncePruneBoundsMap(t *testing.T) {
	d, clock := newTestDebouncer()

	for i := 0; i < debounceMaxEntries; i++ {
		d.ShouldDispatch(buttonEvent(i, 60), 0)
	}
	clock.advance(debounceRetention + time.Second)
	// one more entry trips the sweep; everything stale goes
	d.ShouldDispatch(buttonEvent(debounceMaxEntries, 60), 0)
	if len(d.last) != 1 {
		t.Errorf("map holds %d entries after prune, want 1", len(d.last))
	}
}

// Package classify decides whether a continuous controller stream should be
// read as absolute position or relative delta, per (source, channel,
// controller) key, from accumulated evidence.
package classify

// Mode is the resolved interpretation of a controller stream
type Mode int

const (
	ModeUnknown Mode = iota
	ModeAbsolute
	ModeRelative
)

func (m Mode) String() string {
	switch m {
	case ModeAbsolute:
		return "absolute"
	case ModeRelative:
		return "relative"
	}
	return "unknown"
}

// resolveThreshold is the number of consistent votes needed before a key's
// mode becomes sticky
const resolveThreshold = 3

// Key identifies one controller stream
type Key struct {
	SourceID   int
	Channel    uint8
	Controller uint8
}

// evidence holds the per-key vote counters and the resolved mode. Once
// resolved the mode does not flip without an explicit reset.
type evidence struct {
	relative int
	absolute int
	mode     Mode
}

// Classifier accumulates evidence per key. Not safe for concurrent use; it is
// owned by the single pipeline goroutine.
type Classifier struct {
	states map[Key]*evidence
}

// New creates an empty classifier
func New() *Classifier {
	return &Classifier{states: make(map[Key]*evidence)}
}

// LooksRelative is the per-value heuristic for generic CC and V-Pot data:
// the rest value 64, small excursions near zero or near 127 in the
// two's-complement-like encoding, or the near-64 deadband of the signed-bit
// encoding. Anything else counts as absolute evidence.
func LooksRelative(value uint8) bool {
	if value == 64 {
		return true
	}
	if value >= 1 && value <= 8 {
		return true
	}
	if value >= 120 && value <= 127 {
		return true
	}
	if value >= 56 && value <= 72 {
		return true
	}
	return false
}

// Observe records one value for the key and returns the mode to use for this
// frame. Before the key resolves, the per-value heuristic decides the
// current-frame treatment without committing the resolved state.
func (c *Classifier) Observe(key Key, value uint8) Mode {
	ev := c.states[key]
	if ev == nil {
		ev = &evidence{}
		c.states[key] = ev
	}

	rel := LooksRelative(value)
	if rel {
		ev.relative++
	} else {
		ev.absolute++
	}

	if ev.mode == ModeUnknown {
		if ev.relative >= resolveThreshold && ev.relative > ev.absolute {
			ev.mode = ModeRelative
		} else if ev.absolute >= resolveThreshold && ev.absolute >= ev.relative {
			ev.mode = ModeAbsolute
		}
	}

	if ev.mode != ModeUnknown {
		return ev.mode
	}
	if rel {
		return ModeRelative
	}
	return ModeAbsolute
}

// ModeFor returns the resolved mode for a key without adding evidence
func (c *Classifier) ModeFor(key Key) Mode {
	if ev := c.states[key]; ev != nil {
		return ev.mode
	}
	return ModeUnknown
}

// ResetSource invalidates all keys for one source, used on device
// disconnect or reconnect
func (c *Classifier) ResetSource(sourceID int) {
	for key := range c.states {
		if key.SourceID == sourceID {
			delete(c.states, key)
		}
	}
}

// Reset invalidates every key, used on settings or connection reset
func (c *Classifier) Reset() {
	c.states = make(map[Key]*evidence)
}

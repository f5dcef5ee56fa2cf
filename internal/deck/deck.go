// Package deck owns the user-facing control grid: a fixed arena of cells,
// each optionally bound to a physical trigger and a plugin target, plus the
// learn-mode capture state machine and the dispatch debouncer.
package deck

import (
	"fmt"
	"strings"
	"time"

	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/midimsg"
)

// NumCells is the size of the control grid
const NumCells = 16

// ControlMapping binds a cell to an action on a named plugin
type ControlMapping struct {
	PluginID string `json:"plugin_id"`
	TargetID string `json:"target_id"`
}

// Cell is one control slot. Trigger plus source identity jointly decide which
// incoming events route here; the rest is transient presentation state
// mutated by the pipeline.
type Cell struct {
	Trigger    *midimsg.Trigger
	SourceID   *int
	SourceName string
	LastEvent  *midimsg.Event
	Mapping    *ControlMapping

	// Transient presentation state
	Fill       float64
	Phase      float64
	Direction  int
	Mode       classify.Mode
	Nonce      uint64
	LastActive time.Time
}

// Bound reports whether the cell has a trigger recorded
func (c *Cell) Bound() bool {
	return c.Trigger != nil
}

// Matches reports whether an event routes to this cell. The stored source
// identity must match by numeric id or by case-insensitive name; a cell with
// no stored source identity matches any source.
func (c *Cell) Matches(ev midimsg.Event) bool {
	if c.Trigger == nil || *c.Trigger != ev.Trigger {
		return false
	}
	if c.SourceID == nil && c.SourceName == "" {
		return true
	}
	if c.SourceID != nil && *c.SourceID == ev.SourceID {
		return true
	}
	return c.SourceName != "" && strings.EqualFold(c.SourceName, ev.SourceName)
}

// DefaultMappingFunc synthesizes a mapping for a freshly learned trigger
// that has none yet
type DefaultMappingFunc func(t midimsg.Trigger) *ControlMapping

// Deck is the fixed-size grid plus the global learn state. Owned by the
// pipeline goroutine; not safe for concurrent use.
type Deck struct {
	cells       [NumCells]Cell
	learnActive bool
	learnTarget int

	defaultMapping DefaultMappingFunc
}

// New creates a deck with all cells unbound
func New(defaultMapping DefaultMappingFunc) *Deck {
	return &Deck{learnTarget: -1, defaultMapping: defaultMapping}
}

// Cell returns the cell at index i with a bounds check
func (d *Deck) Cell(i int) (*Cell, error) {
	if i < 0 || i >= NumCells {
		return nil, fmt.Errorf("cell index %d out of range [0,%d)", i, NumCells)
	}
	return &d.cells[i], nil
}

// SetLearn enables or disables learn mode and selects the capture target.
// Passing a negative target with active=true leaves learn armed without a
// destination, which captures nothing.
func (d *Deck) SetLearn(active bool, target int) {
	d.learnActive = active
	d.learnTarget = target
	if !active {
		d.learnTarget = -1
	}
}

// Learning reports the active capture target, if any
func (d *Deck) Learning() (int, bool) {
	if !d.learnActive || d.learnTarget < 0 || d.learnTarget >= NumCells {
		return -1, false
	}
	return d.learnTarget, true
}

// Capture binds the event's trigger to the current learn target. An existing
// mapping on the cell is preserved; a missing one is synthesized from the
// default-mapping rule. Any other cell holding the same trigger/source link
// drops it so events route to exactly one cell.
func (d *Deck) Capture(ev midimsg.Event) (int, bool) {
	target, ok := d.Learning()
	if !ok {
		return -1, false
	}

	// duplicate-link removal
	for i := range d.cells {
		if i == target {
			continue
		}
		if d.cells[i].Matches(ev) {
			d.cells[i].Trigger = nil
			d.cells[i].SourceID = nil
			d.cells[i].SourceName = ""
		}
	}

	cell := &d.cells[target]
	trig := ev.Trigger
	srcID := ev.SourceID
	cell.Trigger = &trig
	cell.SourceID = &srcID
	cell.SourceName = ev.SourceName

	if cell.Mapping == nil && d.defaultMapping != nil {
		cell.Mapping = d.defaultMapping(trig)
	}
	return target, true
}

// Match returns the index of the first cell the event routes to
func (d *Deck) Match(ev midimsg.Event) (int, bool) {
	for i := range d.cells {
		if d.cells[i].Matches(ev) {
			return i, true
		}
	}
	return -1, false
}

// Clear removes the trigger, source identity, mapping and last event of a
// cell together. Partial clears are not a valid state.
func (d *Deck) Clear(i int) error {
	cell, err := d.Cell(i)
	if err != nil {
		return err
	}
	cell.Trigger = nil
	cell.SourceID = nil
	cell.SourceName = ""
	cell.Mapping = nil
	cell.LastEvent = nil
	cell.Nonce++
	return nil
}

// Assign sets or replaces the mapping of a cell
func (d *Deck) Assign(i int, m ControlMapping) error {
	cell, err := d.Cell(i)
	if err != nil {
		return err
	}
	mapping := m
	cell.Mapping = &mapping
	cell.Nonce++
	return nil
}

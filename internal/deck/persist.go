package deck

import "github.com/padbridge/padctl/internal/midimsg"

// CellBinding is the serializable form of one cell's persistent fields, one
// entry per grid cell. Transient presentation state never round-trips.
type CellBinding struct {
	Trigger    *midimsg.Trigger `json:"trigger,omitempty"`
	SourceID   *int             `json:"trigger_source_id,omitempty"`
	SourceName string           `json:"trigger_source_name,omitempty"`
	Mapping    *ControlMapping  `json:"mapping,omitempty"`
}

// Bindings returns the full persisted state of the grid
func (d *Deck) Bindings() []CellBinding {
	bindings := make([]CellBinding, NumCells)
	for i := range d.cells {
		cell := &d.cells[i]
		b := CellBinding{SourceName: cell.SourceName}
		if cell.Trigger != nil {
			trig := *cell.Trigger
			b.Trigger = &trig
		}
		if cell.SourceID != nil {
			id := *cell.SourceID
			b.SourceID = &id
		}
		if cell.Mapping != nil {
			m := *cell.Mapping
			b.Mapping = &m
		}
		bindings[i] = b
	}
	return bindings
}

// Restore loads persisted bindings into the grid. A mapping the validator
// rejects (for example a legacy name-based scene reference superseded by the
// UUID scheme) is dropped rather than misapplied; the caller surfaces the
// returned drop count once and re-saves the cleaned state.
func (d *Deck) Restore(bindings []CellBinding, valid func(ControlMapping) bool) (dropped int) {
	for i, b := range bindings {
		if i >= NumCells {
			break
		}
		cell := &d.cells[i]
		cell.SourceName = b.SourceName
		if b.Trigger != nil {
			trig := *b.Trigger
			cell.Trigger = &trig
		}
		if b.SourceID != nil {
			id := *b.SourceID
			cell.SourceID = &id
		}
		if b.Mapping != nil {
			if valid == nil || valid(*b.Mapping) {
				m := *b.Mapping
				cell.Mapping = &m
			} else {
				dropped++
			}
		}
	}
	return dropped
}

package deck

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/padbridge/padctl/internal/midimsg"
)

func noteEvent(sourceID int, sourceName string, note uint8) midimsg.Event {
	return midimsg.Event{
		Time:       time.Now(),
		SourceName: sourceName,
		SourceID:   sourceID,
		Protocol:   midimsg.ProtocolRaw,
		Trigger:    midimsg.Trigger{Kind: midimsg.TriggerNote, Channel: 0, Number: note},
		Value:      127,
	}
}

func TestCellBounds(t *testing.T) {
	d := New(nil)
	if _, err := d.Cell(-1); err == nil {
		t.Error("negative index accepted")
	}
	if _, err := d.Cell(NumCells); err == nil {
		t.Error("out-of-range index accepted")
	}
	if _, err := d.Cell(0); err != nil {
		t.Errorf("valid index rejected: %v", err)
	}
}

func TestLearnCapture(t *testing.T) {
	d := New(func(midimsg.Trigger) *ControlMapping {
		return &ControlMapping{PluginID: "obs", TargetID: "first"}
	})

	ev := noteEvent(1, "Launchpad", 60)
	if _, ok := d.Capture(ev); ok {
		t.Fatal("capture succeeded without learn mode")
	}

	d.SetLearn(true, 3)
	idx, ok := d.Capture(ev)
	if !ok || idx != 3 {
		t.Fatalf("capture failed: idx=%d ok=%v", idx, ok)
	}

	cell, _ := d.Cell(3)
	if cell.Trigger == nil || *cell.Trigger != ev.Trigger {
		t.Errorf("trigger not recorded: %+v", cell.Trigger)
	}
	if cell.SourceID == nil || *cell.SourceID != 1 || cell.SourceName != "Launchpad" {
		t.Errorf("source scoping not recorded")
	}
	if cell.Mapping == nil || cell.Mapping.TargetID != "first" {
		t.Errorf("default mapping not synthesized: %+v", cell.Mapping)
	}
}

func TestRelearnPreservesMapping(t *testing.T) {
	d := New(nil)
	d.SetLearn(true, 0)
	d.Capture(noteEvent(1, "Launchpad", 60))
	if err := d.Assign(0, ControlMapping{PluginID: "obs", TargetID: "scene:x"}); err != nil {
		t.Fatal(err)
	}

	// relearn the same cell with a different trigger
	d.Capture(noteEvent(1, "Launchpad", 61))
	cell, _ := d.Cell(0)
	if cell.Trigger.Number != 61 {
		t.Errorf("trigger not overwritten: %d", cell.Trigger.Number)
	}
	if cell.Mapping == nil || cell.Mapping.TargetID != "scene:x" {
		t.Errorf("existing mapping not preserved: %+v", cell.Mapping)
	}
}

func TestDuplicateLinkRemoval(t *testing.T) {
	d := New(nil)
	ev := noteEvent(1, "Launchpad", 60)

	d.SetLearn(true, 0)
	d.Capture(ev)
	d.SetLearn(true, 5)
	d.Capture(ev)

	first, _ := d.Cell(0)
	if first.Trigger != nil {
		t.Error("duplicate link not removed from previous cell")
	}
	second, _ := d.Cell(5)
	if second.Trigger == nil {
		t.Error("trigger not moved to new cell")
	}
	if idx, ok := d.Match(ev); !ok || idx != 5 {
		t.Errorf("event routes to cell %d, want 5", idx)
	}
}

func TestSourceScoping(t *testing.T) {
	d := New(nil)
	d.SetLearn(true, 0)
	d.Capture(noteEvent(7, "Launchpad Mini", 60))
	d.SetLearn(false, -1)

	if _, ok := d.Match(noteEvent(7, "Launchpad Mini", 60)); !ok {
		t.Error("same source id did not match")
	}
	// different id, same name (device re-enumerated)
	if _, ok := d.Match(noteEvent(9, "launchpad mini", 60)); !ok {
		t.Error("case-insensitive name match failed")
	}
	// colliding trigger from an unrelated device
	if _, ok := d.Match(noteEvent(2, "Keystation", 60)); ok {
		t.Error("event cross-fired from a different source")
	}

	// a cell with no source identity is a wildcard
	wild, _ := d.Cell(1)
	trig := midimsg.Trigger{Kind: midimsg.TriggerNote, Channel: 0, Number: 61}
	wild.Trigger = &trig
	if _, ok := d.Match(noteEvent(99, "Anything", 61)); !ok {
		t.Error("wildcard cell did not match")
	}
}

func TestClearIsComplete(t *testing.T) {
	d := New(nil)
	d.SetLearn(true, 2)
	ev := noteEvent(1, "Launchpad", 60)
	d.Capture(ev)
	cell, _ := d.Cell(2)
	cell.LastEvent = &ev
	if err := d.Assign(2, ControlMapping{PluginID: "obs", TargetID: "x"}); err != nil {
		t.Fatal(err)
	}

	if err := d.Clear(2); err != nil {
		t.Fatal(err)
	}
	if cell.Trigger != nil || cell.SourceID != nil || cell.SourceName != "" ||
		cell.Mapping != nil || cell.LastEvent != nil {
		t.Error("clear left partial state behind")
	}
}

func TestBindingsRoundTrip(t *testing.T) {
	d := New(nil)
	d.SetLearn(true, 0)
	d.Capture(noteEvent(1, "Launchpad", 60))
	d.SetLearn(true, 4)
	d.Capture(midimsg.Event{
		SourceID:   2,
		SourceName: "Mackie Control",
		Trigger:    midimsg.Trigger{Kind: midimsg.TriggerMackieVPot, Index: 3},
	})
	if err := d.Assign(0, ControlMapping{PluginID: "obs", TargetID: "record.toggle"}); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(d.Bindings())
	if err != nil {
		t.Fatal(err)
	}
	var restored []CellBinding
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatal(err)
	}

	d2 := New(nil)
	if dropped := d2.Restore(restored, nil); dropped != 0 {
		t.Fatalf("restore dropped %d mappings", dropped)
	}

	for i := 0; i < NumCells; i++ {
		a, _ := d.Cell(i)
		b, _ := d2.Cell(i)
		switch {
		case (a.Trigger == nil) != (b.Trigger == nil):
			t.Errorf("cell %d: trigger presence mismatch", i)
		case a.Trigger != nil && *a.Trigger != *b.Trigger:
			t.Errorf("cell %d: trigger mismatch: %+v vs %+v", i, *a.Trigger, *b.Trigger)
		}
		if (a.Mapping == nil) != (b.Mapping == nil) {
			t.Errorf("cell %d: mapping presence mismatch", i)
		} else if a.Mapping != nil && *a.Mapping != *b.Mapping {
			t.Errorf("cell %d: mapping mismatch", i)
		}
		if a.SourceName != b.SourceName {
			t.Errorf("cell %d: source name mismatch", i)
		}
	}
}

func TestRestoreDropsInvalidMappings(t *testing.T) {
	trig := midimsg.Trigger{Kind: midimsg.TriggerNote, Number: 60}
	bindings := []CellBinding{
		{Trigger: &trig, Mapping: &ControlMapping{PluginID: "obs", TargetID: "scene:Main Scene"}},
		{Mapping: &ControlMapping{PluginID: "obs", TargetID: "record.toggle"}},
	}

	d := New(nil)
	dropped := d.Restore(bindings, func(m ControlMapping) bool {
		return m.TargetID == "record.toggle"
	})
	if dropped != 1 {
		t.Fatalf("expected 1 dropped mapping, got %d", dropped)
	}

	first, _ := d.Cell(0)
	if first.Mapping != nil {
		t.Error("legacy mapping survived restore")
	}
	if first.Trigger == nil {
		t.Error("trigger dropped along with mapping")
	}
	second, _ := d.Cell(1)
	if second.Mapping == nil {
		t.Error("valid mapping dropped")
	}
}

package midimsg

import (
	"encoding/json"
	"testing"
)

func TestParseNoteOn(t *testing.T) {
	events := Parse([]byte{0x90, 0x3C, 0x40}, "Generic Keyboard", 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Trigger.Kind != TriggerNote {
		t.Errorf("expected note trigger, got %s", ev.Trigger.Kind)
	}
	if ev.Trigger.Channel != 0 || ev.Trigger.Number != 60 {
		t.Errorf("expected channel 0 note 60, got channel %d note %d", ev.Trigger.Channel, ev.Trigger.Number)
	}
	if ev.Value != 64 {
		t.Errorf("expected velocity 64, got %d", ev.Value)
	}
	if ev.Protocol != ProtocolRaw {
		t.Errorf("expected raw protocol, got %s", ev.Protocol)
	}
	want := RawMessage{Status: 0x90, Data1: 0x3C, Data2: 0x40}
	if ev.Raw != want {
		t.Errorf("raw message mismatch: got %+v want %+v", ev.Raw, want)
	}
}

func TestParseStatusNibbles(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		kind  TriggerKind
		value int
	}{
		{"control change", []byte{0xB3, 0x07, 0x50}, TriggerControlChange, 80},
		{"program change", []byte{0xC2, 0x05}, TriggerProgramChange, 5},
		{"pitch bend", []byte{0xE9, 0x00, 0x40}, TriggerPitchBend, 8192},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Parse(tt.bytes, "Generic Keyboard", 1)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Trigger.Kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, events[0].Trigger.Kind)
			}
			if events[0].Value != tt.value {
				t.Errorf("expected value %d, got %d", tt.value, events[0].Value)
			}
		})
	}
}

func TestNoteOffSuppression(t *testing.T) {
	if events := Parse([]byte{0x80, 0x3C, 0x40}, "Generic Keyboard", 1); len(events) != 0 {
		t.Errorf("note off produced %d events", len(events))
	}
	if events := Parse([]byte{0x90, 0x3C, 0x00}, "Generic Keyboard", 1); len(events) != 0 {
		t.Errorf("note on with velocity 0 produced %d events", len(events))
	}
}

func TestGarbageResynchronization(t *testing.T) {
	events := Parse([]byte{0x00, 0x00, 0x90, 0x3C, 0x40}, "Generic Keyboard", 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after skipping stray bytes, got %d", len(events))
	}
	if events[0].Trigger.Kind != TriggerNote || events[0].Trigger.Number != 60 {
		t.Errorf("unexpected event: %+v", events[0].Trigger)
	}
}

func TestConcatenatedMessages(t *testing.T) {
	buf := []byte{
		0x90, 0x3C, 0x7F, // note on
		0xB0, 0x07, 0x20, // cc
		0xC0, 0x02, // program change
	}
	events := Parse(buf, "Generic Keyboard", 1)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	kinds := []TriggerKind{TriggerNote, TriggerControlChange, TriggerProgramChange}
	for i, kind := range kinds {
		if events[i].Trigger.Kind != kind {
			t.Errorf("event %d: expected %s, got %s", i, kind, events[i].Trigger.Kind)
		}
	}
}

func TestUnknownStatusAdvancesOneByte(t *testing.T) {
	// aftertouch is unrecognized; the following note must still parse
	buf := []byte{0xA0, 0x90, 0x3C, 0x7F}
	events := Parse(buf, "Generic Keyboard", 1)
	if len(events) != 2 {
		t.Fatalf("expected unknown + note, got %d events", len(events))
	}
	if events[0].Trigger.Kind != TriggerUnknown {
		t.Errorf("expected unknown first, got %s", events[0].Trigger.Kind)
	}
	if events[1].Trigger.Kind != TriggerNote {
		t.Errorf("expected note second, got %s", events[1].Trigger.Kind)
	}
}

func TestMackieReinterpretation(t *testing.T) {
	buf := []byte{0x90, 91, 0x7F}

	mackie := Parse(buf, "Mackie Control", 1)
	if len(mackie) != 1 {
		t.Fatalf("expected 1 event, got %d", len(mackie))
	}
	if mackie[0].Trigger.Kind != TriggerMackieTransport || mackie[0].Trigger.Action != TransportRewind {
		t.Errorf("expected transport rewind, got %+v", mackie[0].Trigger)
	}
	if mackie[0].Protocol != ProtocolMackie {
		t.Errorf("expected mackie protocol, got %s", mackie[0].Protocol)
	}

	generic := Parse(buf, "Generic Keyboard", 1)
	if len(generic) != 1 {
		t.Fatalf("expected 1 event, got %d", len(generic))
	}
	if generic[0].Trigger.Kind != TriggerNote || generic[0].Trigger.Number != 91 {
		t.Errorf("expected plain note 91, got %+v", generic[0].Trigger)
	}
}

func TestMackieTransportRange(t *testing.T) {
	actions := []TransportAction{TransportRewind, TransportFastForward, TransportStop, TransportPlay, TransportRecord}
	for i, action := range actions {
		events := Parse([]byte{0x90, byte(91 + i), 0x7F}, "Mackie Control Universal", 1)
		if len(events) != 1 {
			t.Fatalf("note %d: expected 1 event", 91+i)
		}
		if events[0].Trigger.Action != action {
			t.Errorf("note %d: expected %s, got %s", 91+i, action, events[0].Trigger.Action)
		}
	}
}

func TestMackieVPotAndFader(t *testing.T) {
	vpot := Parse([]byte{0xB0, 17, 0x41}, "Mackie Control", 1)
	if len(vpot) != 1 || vpot[0].Trigger.Kind != TriggerMackieVPot || vpot[0].Trigger.Index != 1 {
		t.Fatalf("expected V-Pot 1, got %+v", vpot)
	}

	fader := Parse([]byte{0xE2, 0x00, 0x40}, "Mackie Control", 1)
	if len(fader) != 1 || fader[0].Trigger.Kind != TriggerMackieFader || fader[0].Trigger.Index != 2 {
		t.Fatalf("expected fader 2, got %+v", fader)
	}
	if fader[0].Value != 8192 {
		t.Errorf("expected bend 8192, got %d", fader[0].Value)
	}

	// pitch bend on a channel past the fader range stays generic
	bend := Parse([]byte{0xE9, 0x00, 0x40}, "Mackie Control", 1)
	if len(bend) != 1 || bend[0].Trigger.Kind != TriggerPitchBend {
		t.Fatalf("expected generic pitch bend on channel 9, got %+v", bend)
	}
}

func TestXTouchVendorTransport(t *testing.T) {
	events := Parse([]byte{0x90, 115, 0x7F}, "X-Touch Compact", 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Trigger.Kind != TriggerMackieTransport || events[0].Trigger.Action != TransportPlay {
		t.Errorf("expected transport play, got %+v", events[0].Trigger)
	}
}

func TestTriggerSerializationRoundTrip(t *testing.T) {
	triggers := []Trigger{
		{Kind: TriggerNote, Channel: 3, Number: 60},
		{Kind: TriggerControlChange, Channel: 0, Number: 7},
		{Kind: TriggerProgramChange, Channel: 15, Number: 127},
		{Kind: TriggerPitchBend, Channel: 9},
		{Kind: TriggerMackieTransport, Action: TransportRecord},
		{Kind: TriggerMackieVPot, Index: 5},
		{Kind: TriggerMackieFader, Index: 7},
	}
	for _, trig := range triggers {
		data, err := json.Marshal(trig)
		if err != nil {
			t.Fatalf("marshal %+v: %v", trig, err)
		}
		var got Trigger
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != trig {
			t.Errorf("round trip mismatch: got %+v want %+v (%s)", got, trig, data)
		}
	}
}

func TestTriggerSerializationOmitsIrrelevantFields(t *testing.T) {
	data, err := json.Marshal(Trigger{Kind: TriggerMackieTransport, Action: TransportPlay})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["channel"]; ok {
		t.Errorf("transport trigger serialized a channel field: %s", data)
	}
	if _, ok := fields["index"]; ok {
		t.Errorf("transport trigger serialized an index field: %s", data)
	}
}

func TestTruncatedMessageStopsCleanly(t *testing.T) {
	events := Parse([]byte{0x90, 0x3C}, "Generic Keyboard", 1)
	if len(events) != 0 {
		t.Errorf("truncated message produced %d events", len(events))
	}
}

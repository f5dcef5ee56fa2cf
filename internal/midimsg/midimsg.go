package midimsg

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol identifies which wire interpretation produced an event
type Protocol string

const (
	ProtocolRaw    Protocol = "raw"            // plain channel-voice MIDI
	ProtocolMackie Protocol = "mackie_control" // Mackie Control reinterpretation
)

// TransportAction is a Mackie Control transport button
type TransportAction string

const (
	TransportRewind      TransportAction = "rewind"
	TransportFastForward TransportAction = "fast_forward"
	TransportStop        TransportAction = "stop"
	TransportPlay        TransportAction = "play"
	TransportRecord      TransportAction = "record"
)

// TriggerKind discriminates the Trigger union
type TriggerKind string

const (
	TriggerNote            TriggerKind = "note"
	TriggerControlChange   TriggerKind = "control_change"
	TriggerProgramChange   TriggerKind = "program_change"
	TriggerPitchBend       TriggerKind = "pitch_bend"
	TriggerMackieTransport TriggerKind = "mackie_transport"
	TriggerMackieVPot      TriggerKind = "mackie_vpot"
	TriggerMackieFader     TriggerKind = "mackie_fader"
	TriggerUnknown         TriggerKind = "unknown"
)

// RawMessage is one unparsed MIDI message as delivered by the transport.
// Program change carries a single data byte; Data2 is zero in that case.
type RawMessage struct {
	Status uint8 `json:"status"`
	Data1  uint8 `json:"data1"`
	Data2  uint8 `json:"data2"`
}

// Trigger identifies what kind of control was activated, independent of its
// current value. It is the stable key used for mapping lookup: two presses of
// the same button compare equal with == regardless of velocity.
//
// Only the fields relevant to the Kind are meaningful; the rest stay zero so
// that structural equality holds.
type Trigger struct {
	Kind    TriggerKind     `json:"kind"`
	Channel uint8           `json:"channel,omitempty"`
	Number  uint8           `json:"number,omitempty"` // note, controller or program
	Action  TransportAction `json:"action,omitempty"`
	Index   uint8           `json:"index,omitempty"` // V-Pot or fader index
}

// Continuous reports whether the trigger carries live position/delta data
// (as opposed to an edge-triggered press)
func (t Trigger) Continuous() bool {
	switch t.Kind {
	case TriggerControlChange, TriggerPitchBend, TriggerMackieVPot, TriggerMackieFader:
		return true
	}
	return false
}

// Label returns a short human-readable description for UI and snapshots
func (t Trigger) Label() string {
	switch t.Kind {
	case TriggerNote:
		return fmt.Sprintf("Note %d ch %d", t.Number, t.Channel+1)
	case TriggerControlChange:
		return fmt.Sprintf("CC %d ch %d", t.Number, t.Channel+1)
	case TriggerProgramChange:
		return fmt.Sprintf("PC %d ch %d", t.Number, t.Channel+1)
	case TriggerPitchBend:
		return fmt.Sprintf("Bend ch %d", t.Channel+1)
	case TriggerMackieTransport:
		return fmt.Sprintf("Transport %s", t.Action)
	case TriggerMackieVPot:
		return fmt.Sprintf("V-Pot %d", t.Index+1)
	case TriggerMackieFader:
		return fmt.Sprintf("Fader %d", t.Index+1)
	}
	return "Unknown"
}

// triggerJSON is the serialized shape: a kind tag plus only the fields that
// the kind actually uses. Pointers so absent fields round-trip as absent.
type triggerJSON struct {
	Kind    TriggerKind      `json:"kind"`
	Channel *uint8           `json:"channel,omitempty"`
	Number  *uint8           `json:"number,omitempty"`
	Action  *TransportAction `json:"action,omitempty"`
	Index   *uint8           `json:"index,omitempty"`
}

// MarshalJSON writes the kind tag plus only the fields relevant to that kind
func (t Trigger) MarshalJSON() ([]byte, error) {
	out := triggerJSON{Kind: t.Kind}
	ch, num, act, idx := t.Channel, t.Number, t.Action, t.Index
	switch t.Kind {
	case TriggerNote, TriggerControlChange, TriggerProgramChange:
		out.Channel = &ch
		out.Number = &num
	case TriggerPitchBend:
		out.Channel = &ch
	case TriggerMackieTransport:
		out.Action = &act
	case TriggerMackieVPot, TriggerMackieFader:
		out.Index = &idx
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a trigger, zeroing fields the kind does not use
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var in triggerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Trigger{Kind: in.Kind}
	if in.Channel != nil {
		t.Channel = *in.Channel
	}
	if in.Number != nil {
		t.Number = *in.Number
	}
	if in.Action != nil {
		t.Action = *in.Action
	}
	if in.Index != nil {
		t.Index = *in.Index
	}
	return nil
}

// Event is one fully classified occurrence: a trigger identity plus its
// instantaneous value. Created once per parsed message and never mutated.
//
// Value semantics by kind: note velocity (1-127), controller value (0-127),
// program number (0-127), V-Pot raw value (0-127), transport velocity, and
// the 14-bit bend amount (0-16383, center 8192) for pitch bend and faders.
type Event struct {
	Time       time.Time  `json:"time"`
	SourceName string     `json:"source_name"`
	SourceID   int        `json:"source_id"`
	Protocol   Protocol   `json:"protocol"`
	Trigger    Trigger    `json:"trigger"`
	Value      int        `json:"value"`
	Raw        RawMessage `json:"raw"`
}

// Normalized maps the event value to [0,1] for the value range of its kind
func (e Event) Normalized() float64 {
	switch e.Trigger.Kind {
	case TriggerPitchBend, TriggerMackieFader:
		return float64(e.Value) / 16383.0
	default:
		return float64(e.Value) / 127.0
	}
}

package midimsg

import (
	"strings"
	"time"
)

// Mackie Control reserved ranges
const (
	mackieTransportFirst uint8 = 91 // rewind
	mackieTransportLast  uint8 = 95 // record
	mackieVPotFirst      uint8 = 16
	mackieVPotLast       uint8 = 23
	mackieFaderChannels  uint8 = 8 // pitch bend on channels 0-7
)

// transportActions indexes transport buttons from note 91 upward
var transportActions = [5]TransportAction{
	TransportRewind,
	TransportFastForward,
	TransportStop,
	TransportPlay,
	TransportRecord,
}

// xtouchTransport is the vendor-specific transport note set used by X-Touch
// compact-layer firmware, checked only when the primary Mackie note range
// does not match.
var xtouchTransport = map[uint8]TransportAction{
	112: TransportRewind,
	113: TransportFastForward,
	114: TransportStop,
	115: TransportPlay,
	116: TransportRecord,
}

// isMackieSource reports whether the source name marks a Mackie-protocol
// device. Matching is a case-insensitive substring check on known vendor
// markers, resolved once per parse call.
func isMackieSource(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "mackie") ||
		strings.Contains(lower, "control universal") ||
		strings.Contains(lower, "x-touch")
}

func isXTouchSource(name string) bool {
	return strings.Contains(strings.ToLower(name), "x-touch")
}

// Parse decodes a raw byte buffer into typed events. The buffer may contain
// several concatenated MIDI messages; stray bytes with the high bit unset are
// skipped one at a time until a status byte is found, so a partially garbled
// stream resynchronizes on the next valid message.
//
// Parsing is a pure function of (buf, sourceName): no state persists between
// calls. Mode classification is a separate concern.
func Parse(buf []byte, sourceName string, sourceID int) []Event {
	mackie := isMackieSource(sourceName)
	now := time.Now()

	var events []Event
	i := 0
	for i < len(buf) {
		status := buf[i]
		if status < 0x80 {
			// mid-stream garbage, advance one byte and retry
			i++
			continue
		}

		channel := status & 0x0F
		switch status & 0xF0 {
		case 0x80: // note off: never meaningful here
			if i+2 >= len(buf) {
				return events
			}
			i += 3

		case 0x90:
			if i+2 >= len(buf) {
				return events
			}
			note, velocity := buf[i+1]&0x7F, buf[i+2]&0x7F
			raw := RawMessage{Status: status, Data1: note, Data2: velocity}
			// velocity 0 is a note off in disguise
			if velocity > 0 {
				events = append(events, noteEvent(now, sourceName, sourceID, mackie, channel, note, velocity, raw))
			}
			i += 3

		case 0xB0:
			if i+2 >= len(buf) {
				return events
			}
			controller, value := buf[i+1]&0x7F, buf[i+2]&0x7F
			raw := RawMessage{Status: status, Data1: controller, Data2: value}
			trig := Trigger{Kind: TriggerControlChange, Channel: channel, Number: controller}
			if mackie && controller >= mackieVPotFirst && controller <= mackieVPotLast {
				trig = Trigger{Kind: TriggerMackieVPot, Index: controller - mackieVPotFirst}
			}
			events = append(events, makeEvent(now, sourceName, sourceID, trig, int(value), raw))
			i += 3

		case 0xC0:
			if i+1 >= len(buf) {
				return events
			}
			program := buf[i+1] & 0x7F
			raw := RawMessage{Status: status, Data1: program}
			trig := Trigger{Kind: TriggerProgramChange, Channel: channel, Number: program}
			events = append(events, makeEvent(now, sourceName, sourceID, trig, int(program), raw))
			i += 2

		case 0xE0:
			if i+2 >= len(buf) {
				return events
			}
			lsb, msb := buf[i+1]&0x7F, buf[i+2]&0x7F
			bend := int(msb)<<7 | int(lsb)
			raw := RawMessage{Status: status, Data1: lsb, Data2: msb}
			trig := Trigger{Kind: TriggerPitchBend, Channel: channel}
			if mackie && channel < mackieFaderChannels {
				trig = Trigger{Kind: TriggerMackieFader, Index: channel}
			}
			events = append(events, makeEvent(now, sourceName, sourceID, trig, bend, raw))
			i += 3

		default:
			// Unrecognized status. Emit as unknown and advance a single byte
			// so a malformed stream cannot swallow a following valid message.
			raw := RawMessage{Status: status}
			trig := Trigger{Kind: TriggerUnknown}
			events = append(events, makeEvent(now, sourceName, sourceID, trig, 0, raw))
			i++
		}
	}
	return events
}

// noteEvent resolves a note-on, applying Mackie transport reinterpretation
// for marked sources. The primary Mackie note range is checked first, then
// the X-Touch vendor set when the source name also carries that marker.
func noteEvent(now time.Time, sourceName string, sourceID int, mackie bool, channel, note, velocity uint8, raw RawMessage) Event {
	if mackie {
		if channel == 0 && note >= mackieTransportFirst && note <= mackieTransportLast {
			trig := Trigger{Kind: TriggerMackieTransport, Action: transportActions[note-mackieTransportFirst]}
			return makeEvent(now, sourceName, sourceID, trig, int(velocity), raw)
		}
		if isXTouchSource(sourceName) {
			if action, ok := xtouchTransport[note]; ok {
				trig := Trigger{Kind: TriggerMackieTransport, Action: action}
				return makeEvent(now, sourceName, sourceID, trig, int(velocity), raw)
			}
		}
	}
	trig := Trigger{Kind: TriggerNote, Channel: channel, Number: note}
	return makeEvent(now, sourceName, sourceID, trig, int(velocity), raw)
}

func makeEvent(now time.Time, sourceName string, sourceID int, trig Trigger, value int, raw RawMessage) Event {
	protocol := ProtocolRaw
	switch trig.Kind {
	case TriggerMackieTransport, TriggerMackieVPot, TriggerMackieFader:
		protocol = ProtocolMackie
	}
	return Event{
		Time:       now,
		SourceName: sourceName,
		SourceID:   sourceID,
		Protocol:   protocol,
		Trigger:    trig,
		Value:      value,
		Raw:        raw,
	}
}

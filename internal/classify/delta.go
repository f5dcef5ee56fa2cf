package classify

// Two relative encodings coexist on real hardware and are numerically
// different; each controller family gets exactly one of them.
//
// SignedBitDelta is the canonical decoding for generic CC encoders and is
// what the presentation path (fill/phase animation) uses. MackieDelta is the
// 6-bit sign-magnitude encoding Mackie V-Pots emit and is what the volume
// adjustment path uses for V-Pot events. The two must not be conflated.

// SignedBitDelta decodes the two's-complement-like relative encoding:
// 64 is rest, values above 64 turn clockwise, values below turn counter-
// clockwise by the value itself.
func SignedBitDelta(value uint8) int {
	switch {
	case value == 64:
		return 0
	case value > 64:
		return int(value) - 64
	default:
		return -int(value)
	}
}

// MackieDelta decodes the Mackie 6-bit sign-magnitude encoding: bit 6 set
// means counter-clockwise with the magnitude in the low six bits.
func MackieDelta(value uint8) int {
	if value <= 0x3F {
		return int(value)
	}
	return -int(value & 0x3F)
}

// PhaseStep converts a relative delta into a presentation phase increment.
// Magnitude is clamped to [1,8] and scaled to steps of a tenth, so the same
// delta sequence always yields the same phase sequence.
func PhaseStep(delta int) float64 {
	if delta == 0 {
		return 0
	}
	magnitude := delta
	sign := 1.0
	if magnitude < 0 {
		magnitude = -magnitude
		sign = -1.0
	}
	if magnitude < 1 {
		magnitude = 1
	}
	if magnitude > 8 {
		magnitude = 8
	}
	return sign * float64(magnitude) / 10.0
}

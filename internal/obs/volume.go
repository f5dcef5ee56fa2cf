package obs

import "math"

// Volume mapping constants. Absolute positions travel a -60dB..0dB
// logarithmic curve; the floor clamps to hard zero rather than a very small
// multiplier. Relative deltas apply a bounded dB increment against the last
// known value.
const (
	minDB          = -60.0
	dbPerDeltaUnit = 0.5
	maxDeltaUnits  = 8
	// below this normalized position the input is also muted
	muteThreshold = 0.001
)

// MulForNormalized maps a normalized fader position to an OBS volume
// multiplier through the dB curve
func MulForNormalized(norm float64) float64 {
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	db := minDB + norm*(-minDB)
	if db <= minDB+1e-9 {
		return 0
	}
	return math.Pow(10, db/20)
}

// NormalizedForMul is the inverse mapping, used for snapshots
func NormalizedForMul(mul float64) float64 {
	if mul <= 0 {
		return 0
	}
	db := 20 * math.Log10(mul)
	if db < minDB {
		return 0
	}
	if db > 0 {
		return 1
	}
	return (db - minDB) / -minDB
}

// SetVolumeNormalized drives an absolute position. Muting couples to volume
// at the zero boundary: near-zero positions also mute, anything above the
// threshold unmutes. Both remote calls are issued, volume first.
func (c *Client) SetVolumeNormalized(input string, norm float64) error {
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	mul := MulForNormalized(norm)
	if err := c.submit("SetInputVolume", map[string]any{
		"inputName":      input,
		"inputVolumeMul": mul,
	}, pendingRequest{}); err != nil {
		return err
	}
	muted := norm <= muteThreshold
	err := c.submit("SetInputMute", map[string]any{
		"inputName":  input,
		"inputMuted": muted,
	}, pendingRequest{})

	c.mu.Lock()
	c.volumeMul[input] = mul
	c.muted[input] = muted
	c.mu.Unlock()
	return err
}

// AdjustVolume applies a relative delta as a bounded dB step against the
// last known multiplier
func (c *Client) AdjustVolume(input string, delta int) error {
	if delta == 0 {
		return nil
	}
	if delta > maxDeltaUnits {
		delta = maxDeltaUnits
	}
	if delta < -maxDeltaUnits {
		delta = -maxDeltaUnits
	}

	c.mu.Lock()
	mul := c.volumeMul[input]
	c.mu.Unlock()

	db := minDB
	if mul > 0 {
		db = 20 * math.Log10(mul)
	}
	db += float64(delta) * dbPerDeltaUnit
	if db < minDB {
		db = minDB
	}
	if db > 0 {
		db = 0
	}
	norm := (db - minDB) / -minDB
	return c.SetVolumeNormalized(input, norm)
}

// VolumeNormalized returns the cached fader position for an input
func (c *Client) VolumeNormalized(input string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NormalizedForMul(c.volumeMul[input])
}

// ToggleMute flips the cached mute state of an input
func (c *Client) ToggleMute(input string) error {
	return c.submit("ToggleInputMute", map[string]any{"inputName": input}, pendingRequest{})
}

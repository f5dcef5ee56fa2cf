package classify

import "testing"

func TestLooksRelative(t *testing.T) {
	relative := []uint8{64, 1, 5, 8, 120, 127, 56, 72}
	for _, v := range relative {
		if !LooksRelative(v) {
			t.Errorf("value %d should look relative", v)
		}
	}
	absolute := []uint8{0, 20, 40, 50, 90, 100, 110}
	for _, v := range absolute {
		if LooksRelative(v) {
			t.Errorf("value %d should look absolute", v)
		}
	}
}

func TestClassifierResolvesRelative(t *testing.T) {
	c := New()
	key := Key{SourceID: 1, Channel: 0, Controller: 16}

	for i := 0; i < 3; i++ {
		c.Observe(key, 65)
	}
	if got := c.ModeFor(key); got != ModeRelative {
		t.Fatalf("expected relative after 3 votes, got %s", got)
	}
}

func TestClassifierStickiness(t *testing.T) {
	c := New()
	key := Key{SourceID: 1, Channel: 0, Controller: 16}

	for i := 0; i < 3; i++ {
		c.Observe(key, 65)
	}
	// absolute-looking values do not flip a resolved key
	for i := 0; i < 10; i++ {
		if got := c.Observe(key, 30); got != ModeRelative {
			t.Fatalf("resolved mode flipped to %s", got)
		}
	}
	if got := c.ModeFor(key); got != ModeRelative {
		t.Errorf("expected sticky relative, got %s", got)
	}
}

func TestClassifierResolvesAbsolute(t *testing.T) {
	c := New()
	key := Key{SourceID: 2, Channel: 1, Controller: 7}

	values := []uint8{10, 20, 30}
	for _, v := range values {
		c.Observe(key, v)
	}
	if got := c.ModeFor(key); got != ModeAbsolute {
		t.Fatalf("expected absolute, got %s", got)
	}
	if got := c.Observe(key, 64); got != ModeAbsolute {
		t.Errorf("resolved absolute flipped to %s", got)
	}
}

func TestTransientTreatmentBeforeResolution(t *testing.T) {
	c := New()
	key := Key{SourceID: 3, Channel: 0, Controller: 1}

	if got := c.Observe(key, 64); got != ModeRelative {
		t.Errorf("first relative-looking value treated as %s", got)
	}
	if got := c.Observe(key, 30); got != ModeAbsolute {
		t.Errorf("absolute-looking value treated as %s", got)
	}
	if got := c.ModeFor(key); got != ModeUnknown {
		t.Errorf("key resolved prematurely to %s", got)
	}
}

func TestResetSource(t *testing.T) {
	c := New()
	keyA := Key{SourceID: 1, Channel: 0, Controller: 16}
	keyB := Key{SourceID: 2, Channel: 0, Controller: 16}
	for i := 0; i < 3; i++ {
		c.Observe(keyA, 65)
		c.Observe(keyB, 65)
	}

	c.ResetSource(1)
	if got := c.ModeFor(keyA); got != ModeUnknown {
		t.Errorf("reset source still resolved: %s", got)
	}
	if got := c.ModeFor(keyB); got != ModeRelative {
		t.Errorf("other source lost its mode: %s", got)
	}
}

func TestSignedBitDelta(t *testing.T) {
	tests := []struct {
		value uint8
		want  int
	}{
		{64, 0},
		{65, 1},
		{72, 8},
		{1, -1},
		{8, -8},
		{127, 63},
	}
	for _, tt := range tests {
		if got := SignedBitDelta(tt.value); got != tt.want {
			t.Errorf("SignedBitDelta(%d) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestMackieDelta(t *testing.T) {
	tests := []struct {
		value uint8
		want  int
	}{
		{0, 0},
		{1, 1},
		{0x3F, 63},
		{0x41, -1},
		{0x47, -7},
	}
	for _, tt := range tests {
		if got := MackieDelta(tt.value); got != tt.want {
			t.Errorf("MackieDelta(%#x) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestEncodingsDiffer(t *testing.T) {
	// 0x41 decodes to +1 signed-bit but -1 Mackie; conflating them inverts
	// encoder direction
	if SignedBitDelta(0x41) == MackieDelta(0x41) {
		t.Error("encodings unexpectedly agree on 0x41")
	}
}

func TestPhaseStepDeterminism(t *testing.T) {
	deltas := []int{1, 3, -2, 8, -8, 12, -15, 0}
	var first, second float64
	for _, d := range deltas {
		first += PhaseStep(d)
	}
	for _, d := range deltas {
		second += PhaseStep(d)
	}
	if first != second {
		t.Errorf("same delta sequence produced different phases: %f vs %f", first, second)
	}
}

func TestPhaseStepClamped(t *testing.T) {
	if got := PhaseStep(100); got != 0.8 {
		t.Errorf("PhaseStep(100) = %f, want 0.8", got)
	}
	if got := PhaseStep(-100); got != -0.8 {
		t.Errorf("PhaseStep(-100) = %f, want -0.8", got)
	}
	if got := PhaseStep(0); got != 0 {
		t.Errorf("PhaseStep(0) = %f, want 0", got)
	}
}

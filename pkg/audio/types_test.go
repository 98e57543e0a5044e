// ABOUTME: Tests for audio types
// ABOUTME: Tests format sizing and sample quantization helpers
package audio

import "testing"

func TestFormatSizes(t *testing.T) {
	format := DefaultFormat()

	if format.BytesPerSample() != 2 {
		t.Errorf("expected 2 bytes per sample, got %d", format.BytesPerSample())
	}
	if format.FrameSize() != 4 {
		t.Errorf("expected frame size 4, got %d", format.FrameSize())
	}
	if got := format.FramesToBytes(240); got != 960 {
		t.Errorf("expected 960 bytes for 240 frames, got %d", got)
	}
	if format.String() != "16000Hz/2ch/16bit" {
		t.Errorf("unexpected format string %q", format.String())
	}
}

func TestQuantizeUnit(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		amplitude float64
		expected  int16
	}{
		{"zero", 0, 1, 0},
		{"full positive", 1, 1, 32767},
		{"full negative", -1, 1, -32767},
		{"half amplitude", 1, 0.5, 16384}, // 16383.5 rounds away from zero
		{"clamp high", 2, 1, 32767},
		{"clamp low", -2, 1, -32768},
		{"rounding", 0.1, 1, 3277},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := QuantizeUnit(tt.value, tt.amplitude)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestInt16LittleEndian(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected [2]byte
	}{
		{"zero", 0, [2]byte{0x00, 0x00}},
		{"positive", 0x1234, [2]byte{0x34, 0x12}},
		{"negative one", -1, [2]byte{0xFF, 0xFF}},
		{"min", -32768, [2]byte{0x00, 0x80}},
		{"max", 32767, [2]byte{0xFF, 0x7F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b [2]byte
			PutInt16(b[:], tt.input)
			if b != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, b)
			}
			if got := Int16(b[:]); got != tt.input {
				t.Errorf("round trip: expected %d, got %d", tt.input, got)
			}
		})
	}
}

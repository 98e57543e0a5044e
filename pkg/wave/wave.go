// ABOUTME: Generator interface and waveform descriptor
// ABOUTME: Validates descriptors and dispatches to the sine or triangle generator
package wave

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// DefaultAmplitude leaves 6 dB of headroom below full scale
const DefaultAmplitude = 0.5

// Kind selects the waveform shape
type Kind int

const (
	Sine Kind = iota
	Triangle
)

func (k Kind) String() string {
	switch k {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a waveform name ("sine", "triangle")
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sine", "sin":
		return Sine, nil
	case "triangle", "tri":
		return Triangle, nil
	default:
		return 0, configErr("waveform", s, "expected sine or triangle")
	}
}

// Descriptor is the immutable description of a tone.
// Every channel carries the same sample (duplicated mono).
type Descriptor struct {
	Kind      Kind
	Frequency float64 // Hz
	Format    audio.Format

	// Amplitude scales the unit waveform, in (0, 1]. Zero selects DefaultAmplitude.
	Amplitude float64
}

// Generator fills buffers with the next frames of a periodic waveform
type Generator interface {
	// Fill writes exactly frames frames at buf[0:] and advances the phase.
	// buf must hold at least Format().FramesToBytes(frames) bytes.
	Fill(buf []byte, frames int)

	// Format returns the PCM format written by Fill
	Format() audio.Format
}

// New creates the generator described by d
func New(d Descriptor) (Generator, error) {
	switch d.Kind {
	case Sine:
		g, err := NewSine(d)
		if err != nil {
			return nil, err
		}
		return g, nil
	case Triangle:
		g, err := NewTriangle(d)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, configErr("waveform", d.Kind, "unknown kind")
	}
}

// normalize validates d and fills in defaults
func (d Descriptor) normalize() (Descriptor, error) {
	f := d.Format
	if f.SampleRate <= 0 {
		return d, configErr("sample rate", f.SampleRate, "must be positive")
	}
	if f.BitDepth != 16 {
		return d, configErr("bit depth", f.BitDepth, "only 16-bit samples are supported")
	}
	if f.Channels < 1 || f.Channels > 2 {
		return d, configErr("channel count", f.Channels, "must be 1 or 2")
	}

	nyquist := float64(f.SampleRate) / 2
	if !(d.Frequency > 0) {
		return d, configErr("frequency", d.Frequency, "must be greater than zero")
	}
	if d.Frequency >= nyquist {
		return d, configErr("frequency", d.Frequency, fmt.Sprintf("must be below the Nyquist limit %gHz", nyquist))
	}

	if d.Amplitude == 0 {
		d.Amplitude = DefaultAmplitude
	}
	if !(d.Amplitude > 0 && d.Amplitude <= 1) {
		return d, configErr("amplitude", d.Amplitude, "must be in (0, 1]")
	}

	return d, nil
}

// ABOUTME: Sine wave generator
// ABOUTME: Computes samples on the fly from a wrapped phase accumulator
package wave

import (
	"math"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/encode"
)

const twoPi = 2 * math.Pi

// SineGenerator produces a sine tone sample by sample
type SineGenerator struct {
	format    audio.Format
	encoder   *encode.PCMEncoder
	frequency float64
	amplitude float64

	// phase stays in [0, 2π) after every sample
	phase     float64
	increment float64
}

// NewSine creates a sine generator starting at phase 0
func NewSine(d Descriptor) (*SineGenerator, error) {
	d, err := d.normalize()
	if err != nil {
		return nil, err
	}

	encoder, err := encode.NewPCM(d.Format)
	if err != nil {
		return nil, configErr("format", d.Format, err.Error())
	}

	return &SineGenerator{
		format:    d.Format,
		encoder:   encoder,
		frequency: d.Frequency,
		amplitude: d.Amplitude,
		increment: twoPi * d.Frequency / float64(d.Format.SampleRate),
	}, nil
}

// Fill writes the next frames of the tone
func (g *SineGenerator) Fill(buf []byte, frames int) {
	off := 0
	for i := 0; i < frames; i++ {
		sample := audio.QuantizeUnit(math.Sin(g.phase), g.amplitude)
		off += g.encoder.PutFrame(buf[off:], sample)

		g.phase += g.increment
		if g.phase >= twoPi {
			g.phase -= twoPi
		}
	}
}

// Format returns the PCM format written by Fill
func (g *SineGenerator) Format() audio.Format { return g.format }

// Frequency returns the tone frequency in Hz
func (g *SineGenerator) Frequency() float64 { return g.frequency }

// Phase returns the current phase in radians
func (g *SineGenerator) Phase() float64 { return g.phase }

// Increment returns the per-sample phase advance in radians
func (g *SineGenerator) Increment() float64 { return g.increment }

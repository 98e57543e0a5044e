// ABOUTME: Triangle wave generator
// ABOUTME: Plays back one precomputed period as a circular table
package wave

import (
	"math"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/encode"
)

// TriangleGenerator loops a single-period sample table
type TriangleGenerator struct {
	format    audio.Format
	encoder   *encode.PCMEncoder
	frequency float64
	table     []int16
	cursor    int
}

// NewTriangle builds the period table for d.
// The table holds round(sampleRate/frequency) frames.
func NewTriangle(d Descriptor) (*TriangleGenerator, error) {
	d, err := d.normalize()
	if err != nil {
		return nil, err
	}

	length := int(math.Round(float64(d.Format.SampleRate) / d.Frequency))
	if length == 0 {
		return nil, configErr("frequency", d.Frequency, "period is shorter than one sample")
	}

	encoder, err := encode.NewPCM(d.Format)
	if err != nil {
		return nil, configErr("format", d.Format, err.Error())
	}

	return &TriangleGenerator{
		format:    d.Format,
		encoder:   encoder,
		frequency: d.Frequency,
		table:     rampTable(length, d.Amplitude),
	}, nil
}

// rampTable ramps 0 -> 1 -> -1 -> 0 over length samples. The slope is
// 4/length and reverses by reflection whenever the ramp passes ±1.
// Positions are kept in integer units of 1/length so the table is exact.
func rampTable(length int, amplitude float64) []int16 {
	table := make([]int16, length)

	pos, slope := 0, 4
	for i := range table {
		table[i] = audio.QuantizeUnit(float64(pos)/float64(length), amplitude)

		pos += slope
		if slope > 0 && pos > length {
			pos = 2*length - pos
			slope = -slope
		} else if slope < 0 && pos < -length {
			pos = -2*length - pos
			slope = -slope
		}
	}

	return table
}

// Fill writes the next frames of the table, wrapping at the end of the period
func (g *TriangleGenerator) Fill(buf []byte, frames int) {
	off := 0
	for i := 0; i < frames; i++ {
		off += g.encoder.PutFrame(buf[off:], g.table[g.cursor])

		g.cursor++
		if g.cursor == len(g.table) {
			g.cursor = 0
		}
	}
}

// Format returns the PCM format written by Fill
func (g *TriangleGenerator) Format() audio.Format { return g.format }

// Frequency returns the requested tone frequency in Hz
func (g *TriangleGenerator) Frequency() float64 { return g.frequency }

// Table returns a copy of the period table
func (g *TriangleGenerator) Table() []int16 {
	out := make([]int16, len(g.table))
	copy(out, g.table)
	return out
}

// Cursor returns the table index of the next frame
func (g *TriangleGenerator) Cursor() int { return g.cursor }

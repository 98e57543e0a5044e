// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM stream format and 16-bit sample helpers
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// 16-bit sample range constants
	MaxInt16 = math.MaxInt16 // 32767
	MinInt16 = math.MinInt16 // -32768

	// Default stream format
	DefaultSampleRate = 16000
	DefaultChannels   = 2
	DefaultBitDepth   = 16
)

// Format describes a PCM stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns 16 kHz, 16-bit interleaved stereo
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
	}
}

// BytesPerSample returns the size of one channel sample in bytes
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the size of one interleaved frame in bytes
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample()
}

// FramesToBytes converts a frame count into a byte count
func (f Format) FramesToBytes(frames int) int {
	return frames * f.FrameSize()
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// QuantizeUnit scales a unit-amplitude value to a rounded 16-bit sample.
// Values outside the representable range are clamped.
func QuantizeUnit(v, amplitude float64) int16 {
	scaled := math.Round(v * amplitude * MaxInt16)
	if scaled > MaxInt16 {
		return MaxInt16
	}
	if scaled < MinInt16 {
		return MinInt16
	}
	return int16(scaled)
}

// PutInt16 writes a sample little-endian into b[0:2]
func PutInt16(b []byte, sample int16) {
	binary.LittleEndian.PutUint16(b, uint16(sample))
}

// Int16 reads a little-endian sample from b[0:2]
func Int16(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

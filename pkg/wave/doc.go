// ABOUTME: Waveform synthesis package
// ABOUTME: Generates phase-continuous periodic tones as interleaved 16-bit PCM
// Package wave generates periodic test tones directly into PCM buffers.
//
// Generators are pure numeric code: Fill never allocates, never blocks and
// never fails. Every parameter is checked once by the constructor, which
// returns a *ConfigurationError for anything outside the representable range
// (including frequencies at or above the Nyquist limit).
//
// Supported waveforms:
//   - Sine: incremental phase accumulator wrapped into [0, 2π)
//   - Triangle: one precomputed period played back as a circular table
//
// Example:
//
//	gen, err := wave.New(wave.Descriptor{
//	    Kind:      wave.Sine,
//	    Frequency: 440,
//	    Format:    audio.DefaultFormat(),
//	})
//	buf := make([]byte, gen.Format().FramesToBytes(240))
//	gen.Fill(buf, 240)
package wave

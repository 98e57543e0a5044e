// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and 16-bit little-endian sample helpers
// Package audio provides the PCM format description shared by generators,
// the stream driver and output transports.
//
// Samples are signed 16-bit, little-endian, interleaved per frame:
//
//	frame i: [L lo][L hi][R lo][R hi]
//
// Example:
//
//	format := audio.DefaultFormat() // 16000 Hz, 2 channels, 16-bit
//	buf := make([]byte, format.FramesToBytes(240))
//	audio.PutInt16(buf, audio.QuantizeUnit(0.25, 0.5))
package audio

// ABOUTME: Audio decoder package for the PCM wire format
// ABOUTME: Provides the Decoder interface and the 16-bit PCM implementation
// Package decode reads the PCM wire format back into samples.
//
// It is used by stream listeners and to verify generator output.
//
// Example:
//
//	decoder, err := decode.NewPCM(format)
//	samples, err := decoder.Decode(audioData)
package decode

// ABOUTME: Audio encoder package for packing samples into wire format
// ABOUTME: Provides the FrameEncoder interface and the 16-bit PCM implementation
// Package encode packs samples into the PCM wire format expected by
// transports: signed 16-bit, little-endian, channels interleaved per frame.
//
// Example:
//
//	enc, err := encode.NewPCM(audio.DefaultFormat())
//	n := enc.PutFrame(buf[off:], sample)
package encode

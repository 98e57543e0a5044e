// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for PCM wire-format decoders
package decode

// Decoder turns wire-format bytes back into interleaved samples
type Decoder interface {
	// Decode converts encoded audio data to interleaved samples
	Decode(data []byte) ([]int16, error)
}

// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for frame encoders writing into caller buffers
package encode

// FrameEncoder writes one interleaved frame into a caller-supplied buffer
type FrameEncoder interface {
	// PutFrame writes sample to every channel of the frame at dst[0:FrameSize()]
	// and returns the number of bytes written
	PutFrame(dst []byte, sample int16) int

	// FrameSize returns the encoded frame length in bytes
	FrameSize() int
}

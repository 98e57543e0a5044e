// ABOUTME: PCM audio encoder
// ABOUTME: Packs 16-bit samples into interleaved little-endian frames
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// PCMEncoder encodes duplicated-mono frames as 16-bit little-endian PCM
type PCMEncoder struct {
	channels  int
	frameSize int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMEncoder{
		channels:  format.Channels,
		frameSize: format.FrameSize(),
	}, nil
}

// PutFrame writes sample to every channel of one frame
func (e *PCMEncoder) PutFrame(dst []byte, sample int16) int {
	_ = dst[e.frameSize-1]
	for ch := 0; ch < e.channels; ch++ {
		audio.PutInt16(dst[ch*2:], sample)
	}
	return e.frameSize
}

// FrameSize returns the encoded frame length in bytes
func (e *PCMEncoder) FrameSize() int {
	return e.frameSize
}

// Encode converts mono samples into a new buffer of duplicated frames
func (e *PCMEncoder) Encode(samples []int16) []byte {
	output := make([]byte, len(samples)*e.frameSize)
	for i, sample := range samples {
		e.PutFrame(output[i*e.frameSize:], sample)
	}
	return output
}

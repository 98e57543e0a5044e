// ABOUTME: PCM audio decoder
// ABOUTME: Decodes interleaved 16-bit little-endian PCM to int16 samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	frameSize int
	channels  int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMDecoder{
		frameSize: format.FrameSize(),
		channels:  format.Channels,
	}, nil
}

// Decode converts PCM bytes to interleaved samples
func (d *PCMDecoder) Decode(data []byte) ([]int16, error) {
	if len(data)%d.frameSize != 0 {
		return nil, fmt.Errorf("partial frame: %d bytes is not a multiple of frame size %d", len(data), d.frameSize)
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = audio.Int16(data[i*2:])
	}
	return samples, nil
}

// Channel extracts one channel from interleaved samples
func (d *PCMDecoder) Channel(samples []int16, ch int) []int16 {
	out := make([]int16, 0, len(samples)/d.channels)
	for i := ch; i < len(samples); i += d.channels {
		out = append(out, samples[i])
	}
	return out
}

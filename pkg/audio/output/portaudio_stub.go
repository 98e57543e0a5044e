//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(_ *zap.Logger) *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(Config) error { return errPortAudioDisabled }

// Enable starts the stream
func (p *PortAudio) Enable() error { return errPortAudioDisabled }

// Disable stops the stream
func (p *PortAudio) Disable() error { return errPortAudioDisabled }

// Write outputs audio samples
func (p *PortAudio) Write([]byte, time.Duration) (int, error) { return 0, errPortAudioDisabled }

// Close releases resources
func (p *PortAudio) Close() error { return nil }

// ABOUTME: Audio transport interface definition
// ABOUTME: Common contract for PCM sinks with bounded-wait writes
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// Transport errors
var (
	// ErrTimeout is returned by Write only when zero bytes were accepted within maxWait
	ErrTimeout = errors.New("output: write timed out")

	// ErrDisabled is returned by Write when the channel is not enabled
	ErrDisabled = errors.New("output: channel not enabled")

	// ErrNotOpen is returned when a transport is used before Open
	ErrNotOpen = errors.New("output: transport not opened")
)

// ClockSource selects the sample clock of the channel.
// Software backends accept it for logging only.
type ClockSource int

const (
	ClockDefault ClockSource = iota
	ClockPLL
	ClockExternal
)

func (c ClockSource) String() string {
	switch c {
	case ClockDefault:
		return "default"
	case ClockPLL:
		return "pll"
	case ClockExternal:
		return "external"
	default:
		return fmt.Sprintf("ClockSource(%d)", int(c))
	}
}

// ParseClockSource parses "default", "pll" or "external"
func ParseClockSource(s string) (ClockSource, error) {
	switch s {
	case "", "default":
		return ClockDefault, nil
	case "pll", "apll":
		return ClockPLL, nil
	case "external", "ext":
		return ClockExternal, nil
	default:
		return 0, fmt.Errorf("unknown clock source %q", s)
	}
}

// Config configures a transport channel
type Config struct {
	Format audio.Format

	// Descriptors is the number of queued transfer descriptors
	Descriptors int

	// DescriptorFrames is the number of frames per descriptor
	DescriptorFrames int

	Clock ClockSource
}

// DescriptorBytes returns the size of one descriptor in bytes
func (c Config) DescriptorBytes() int {
	return c.Format.FramesToBytes(c.DescriptorFrames)
}

// QueueBytes returns the total queue capacity in bytes
func (c Config) QueueBytes() int {
	return c.Descriptors * c.DescriptorBytes()
}

// DescriptorPeriod returns the playback duration of one descriptor
func (c Config) DescriptorPeriod() time.Duration {
	return time.Duration(c.DescriptorFrames) * time.Second / time.Duration(c.Format.SampleRate)
}

// Validate checks the channel configuration
func (c Config) Validate() error {
	if c.Format.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Format.SampleRate)
	}
	if c.Format.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", c.Format.BitDepth)
	}
	if c.Format.Channels < 1 || c.Format.Channels > 2 {
		return fmt.Errorf("unsupported channel count: %d", c.Format.Channels)
	}
	if c.Descriptors < 2 {
		return fmt.Errorf("need at least 2 descriptors, got %d", c.Descriptors)
	}
	if c.DescriptorFrames < 1 {
		return fmt.Errorf("invalid frames per descriptor: %d", c.DescriptorFrames)
	}
	return nil
}

// Transport represents a PCM output channel
type Transport interface {
	// Open configures the channel
	Open(cfg Config) error

	// Enable starts the channel; queued data begins to drain
	Enable() error

	// Disable stops the channel and discards queued data.
	// Blocked writers return ErrDisabled.
	Disable() error

	// Write queues up to len(p) bytes, waiting at most maxWait for space.
	// It may accept fewer bytes than requested and returns ErrTimeout
	// only when nothing was accepted.
	Write(p []byte, maxWait time.Duration) (int, error)

	// Close releases output resources
	Close() error
}

// Event reports one drained descriptor
type Event struct {
	// Seq counts drained descriptors since Enable, starting at 1
	Seq uint64

	// Underrun is set when the descriptor was padded with silence
	Underrun bool
}

// CompletionNotifier is implemented by transports that report drained descriptors.
// The callback runs on the transport's drain goroutine and returns false to unregister.
type CompletionNotifier interface {
	OnDescriptorDone(cb func(Event) bool)
}

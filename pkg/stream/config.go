// ABOUTME: Driver configuration
// ABOUTME: Buffer geometry, write bound and logging cadence
package stream

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults match a 16 kHz channel with 12 descriptors of 240 frames
const (
	DefaultDescriptors      = 12
	DefaultDescriptorFrames = 240
	DefaultMaxWait          = 100 * time.Millisecond
	DefaultTimeoutLogEvery  = 10
)

// Config configures a Driver
type Config struct {
	// Descriptors and DescriptorFrames size the working buffer:
	// Descriptors * DescriptorFrames frames per cycle.
	Descriptors      int
	DescriptorFrames int

	// MaxWait bounds every transport write
	MaxWait time.Duration

	// TimeoutLogEvery logs a warning after every N consecutive timeouts
	TimeoutLogEvery int

	// UseCompletion waits for a drained-descriptor event before reusing the
	// buffer. Ignored when the transport does not report completions.
	UseCompletion bool

	Logger   *zap.Logger
	Observer Observer
}

// DefaultConfig returns the default driver configuration
func DefaultConfig() Config {
	return Config{
		Descriptors:      DefaultDescriptors,
		DescriptorFrames: DefaultDescriptorFrames,
		MaxWait:          DefaultMaxWait,
		TimeoutLogEvery:  DefaultTimeoutLogEvery,
	}
}

// BufferFrames returns the number of frames generated per cycle
func (c Config) BufferFrames() int {
	return c.Descriptors * c.DescriptorFrames
}

func (c *Config) validate() error {
	if c.Descriptors < 1 {
		return fmt.Errorf("invalid descriptor count: %d", c.Descriptors)
	}
	if c.DescriptorFrames < 1 {
		return fmt.Errorf("invalid frames per descriptor: %d", c.DescriptorFrames)
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive, got %v", c.MaxWait)
	}
	if c.TimeoutLogEvery <= 0 {
		c.TimeoutLogEvery = DefaultTimeoutLogEvery
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return nil
}

// ABOUTME: Oto-based audio output implementation
// ABOUTME: Speaker playback that pulls PCM from the descriptor queue through an oto player
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Oto output implementation using oto library
type Oto struct {
	logger *zap.Logger

	mu      sync.Mutex
	otoCtx  *oto.Context
	player  *oto.Player
	queue   *descriptorQueue
	cfg     Config
	enabled bool
}

// NewOto creates a new Oto output
func NewOto(logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oto{logger: logger}
}

// Open initializes the output device
func (o *Oto) Open(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// oto only allows one context per process
	if o.otoCtx != nil {
		if o.cfg.Format == cfg.Format {
			o.logger.Info("audio output already initialized with same format, reusing context")
			if o.player == nil {
				o.cfg = cfg
				o.queue = newDescriptorQueue(cfg)
				o.player = o.otoCtx.NewPlayer(queueReader{o.queue})
			}
			return nil
		}
		return fmt.Errorf("oto cannot switch format from %s to %s", o.cfg.Format, cfg.Format)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.Format.SampleRate,
		ChannelCount: cfg.Format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.DescriptorPeriod(),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.cfg = cfg
	o.queue = newDescriptorQueue(cfg)

	// The player pulls from the queue for as long as the process lives
	o.player = o.otoCtx.NewPlayer(queueReader{o.queue})

	o.logger.Info("audio output initialized",
		zap.Stringer("format", cfg.Format),
		zap.Int("descriptors", cfg.Descriptors),
		zap.Int("descriptor_frames", cfg.DescriptorFrames),
		zap.Stringer("clock", cfg.Clock),
	)
	return nil
}

// Enable starts playback
func (o *Oto) Enable() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	if o.enabled {
		return nil
	}

	o.queue.setEnabled(true)
	if err := o.otoCtx.Resume(); err != nil {
		o.queue.setEnabled(false)
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	o.player.Play()
	o.enabled = true
	return nil
}

// Disable pauses playback and discards queued data
func (o *Oto) Disable() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return ErrNotOpen
	}
	if !o.enabled {
		return nil
	}

	o.player.Pause()
	o.queue.setEnabled(false)
	o.enabled = false
	return nil
}

// Write queues PCM bytes for playback
func (o *Oto) Write(p []byte, maxWait time.Duration) (int, error) {
	o.mu.Lock()
	queue := o.queue
	o.mu.Unlock()

	if queue == nil {
		return 0, ErrNotOpen
	}
	return queue.push(p, maxWait)
}

// OnDescriptorDone registers a drained-descriptor callback
func (o *Oto) OnDescriptorDone(cb func(Event) bool) {
	o.mu.Lock()
	queue := o.queue
	o.mu.Unlock()

	if queue != nil {
		queue.register(cb)
	}
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.player != nil {
		o.player.Pause()
		err = o.player.Close()
		o.player = nil
	}
	if o.queue != nil {
		o.queue.setEnabled(false)
	}
	if o.otoCtx != nil {
		if suspendErr := o.otoCtx.Suspend(); suspendErr != nil && err == nil {
			err = suspendErr
		}
	}
	o.enabled = false
	return err
}

// queueReader adapts the descriptor queue to the io.Reader oto pulls from
type queueReader struct {
	q *descriptorQueue
}

func (r queueReader) Read(p []byte) (int, error) {
	r.q.pull(p)
	return len(p), nil
}

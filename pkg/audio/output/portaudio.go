//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Blocking stream writes paced by the device, fed from the descriptor queue
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// PortAudio output implementation
type PortAudio struct {
	logger *zap.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []int16
	queue   *descriptorQueue
	cfg     Config
	stop    chan struct{}
	done    chan struct{}
	enabled bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(logger *zap.Logger) *PortAudio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortAudio{logger: logger}
}

// Open initializes PortAudio with one host buffer per descriptor
func (p *PortAudio) Open(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("portaudio stream already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.buffer = make([]int16, cfg.DescriptorFrames*cfg.Format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, cfg.Format.Channels, float64(cfg.Format.SampleRate), cfg.DescriptorFrames, &p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	p.queue = newDescriptorQueue(cfg)
	p.cfg = cfg

	p.logger.Info("audio output initialized",
		zap.String("backend", "portaudio"),
		zap.Stringer("format", cfg.Format),
		zap.Int("descriptors", cfg.Descriptors),
		zap.Int("descriptor_frames", cfg.DescriptorFrames),
	)
	return nil
}

// Enable starts the stream and the feeding goroutine
func (p *PortAudio) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if p.enabled {
		return nil
	}

	p.queue.setEnabled(true)
	if err := p.stream.Start(); err != nil {
		p.queue.setEnabled(false)
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.enabled = true
	go p.feedLoop(p.stop, p.done)
	return nil
}

// Disable stops the stream and discards queued data
func (p *PortAudio) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if !p.enabled {
		return nil
	}

	close(p.stop)
	<-p.done
	p.queue.setEnabled(false)
	p.enabled = false

	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Write queues PCM bytes for playback
func (p *PortAudio) Write(b []byte, maxWait time.Duration) (int, error) {
	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()

	if queue == nil {
		return 0, ErrNotOpen
	}
	return queue.push(b, maxWait)
}

// OnDescriptorDone registers a drained-descriptor callback
func (p *PortAudio) OnDescriptorDone(cb func(Event) bool) {
	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()

	if queue != nil {
		queue.register(cb)
	}
}

// Close releases resources
func (p *PortAudio) Close() error {
	if err := p.Disable(); err != nil && err != ErrNotOpen {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}

// feedLoop moves one descriptor at a time from the queue into the stream.
// stream.Write blocks until the device has room, which paces the loop.
func (p *PortAudio) feedLoop(stop, done chan struct{}) {
	defer close(done)

	scratch := make([]byte, p.cfg.DescriptorBytes())
	for {
		select {
		case <-stop:
			return
		default:
		}

		p.queue.pull(scratch)
		for i := range p.buffer {
			p.buffer[i] = audio.Int16(scratch[i*2:])
		}

		if err := p.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				p.logger.Debug("portaudio output underflowed")
				continue
			}
			p.logger.Error("portaudio write failed", zap.Error(err))
			p.queue.fail(fmt.Errorf("portaudio write: %w", err))
			<-stop
			return
		}
	}
}

// ABOUTME: Clock-paced output to an io.Writer
// ABOUTME: Drains one descriptor per descriptor period to a file, pipe or nowhere
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Writer drains the descriptor queue at the sample rate into an io.Writer.
// It stands in for a hardware channel when no audio device is present.
type Writer struct {
	dst    io.Writer
	logger *zap.Logger

	// sink receives every drained descriptor; defaults to dst.Write
	sink func([]byte) error

	mu      sync.Mutex
	cfg     Config
	queue   *descriptorQueue
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewWriter creates a paced transport writing raw PCM to dst
func NewWriter(dst io.Writer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{dst: dst, logger: logger}
	w.sink = func(p []byte) error {
		_, err := w.dst.Write(p)
		return err
	}
	return w
}

// NewHeadless creates a paced transport that discards its output
func NewHeadless(logger *zap.Logger) *Writer {
	return NewWriter(io.Discard, logger)
}

// Open configures the channel
func (w *Writer) Open(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("cannot reconfigure an enabled channel")
	}
	w.cfg = cfg
	w.queue = newDescriptorQueue(cfg)

	w.logger.Info("paced output configured",
		zap.Stringer("format", cfg.Format),
		zap.Int("descriptors", cfg.Descriptors),
		zap.Int("descriptor_frames", cfg.DescriptorFrames),
		zap.Duration("descriptor_period", cfg.DescriptorPeriod()),
		zap.Stringer("clock", cfg.Clock),
	)
	return nil
}

// Enable starts the drain clock
func (w *Writer) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.queue == nil {
		return ErrNotOpen
	}
	if w.started {
		return nil
	}

	w.queue.setEnabled(true)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.started = true

	go w.drainLoop(w.queue, w.cfg.DescriptorPeriod(), w.cfg.DescriptorBytes(), w.stop, w.done)
	return nil
}

// Disable stops the drain clock and discards queued data
func (w *Writer) Disable() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.queue == nil {
		return ErrNotOpen
	}
	if !w.started {
		return nil
	}

	close(w.stop)
	<-w.done
	w.queue.setEnabled(false)
	w.started = false
	return nil
}

// Write queues PCM bytes, waiting at most maxWait for space
func (w *Writer) Write(p []byte, maxWait time.Duration) (int, error) {
	w.mu.Lock()
	queue := w.queue
	w.mu.Unlock()

	if queue == nil {
		return 0, ErrNotOpen
	}
	return queue.push(p, maxWait)
}

// OnDescriptorDone registers a drained-descriptor callback
func (w *Writer) OnDescriptorDone(cb func(Event) bool) {
	w.mu.Lock()
	queue := w.queue
	w.mu.Unlock()

	if queue != nil {
		queue.register(cb)
	}
}

// Queued returns the number of bytes waiting to drain
func (w *Writer) Queued() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.queue == nil {
		return 0
	}
	return w.queue.queued()
}

// Close stops the channel
func (w *Writer) Close() error {
	if err := w.Disable(); err != nil && err != ErrNotOpen {
		return err
	}
	return nil
}

// drainLoop pulls one descriptor per tick and hands it to the sink
func (w *Writer) drainLoop(queue *descriptorQueue, period time.Duration, descBytes int, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	scratch := make([]byte, descBytes)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			queue.pull(scratch)
			if err := w.sink(scratch); err != nil {
				w.logger.Error("output sink failed", zap.Error(err))
				queue.fail(fmt.Errorf("output sink: %w", err))
				<-stop
				return
			}
		}
	}
}

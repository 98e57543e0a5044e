// ABOUTME: Streaming driver
// ABOUTME: Generate-then-transfer loop with partial-write tracking and timeout retry
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/wave"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// errStopRequested ends a transfer early when Stop or ctx fires between writes
var errStopRequested = errors.New("stop requested")

// Stats is a snapshot of driver counters
type Stats struct {
	Buffers                uint64 `json:"buffers"`
	Frames                 uint64 `json:"frames"`
	Bytes                  uint64 `json:"bytes"`
	WriteCalls             uint64 `json:"write_calls"`
	PartialWrites          uint64 `json:"partial_writes"`
	Timeouts               uint64 `json:"timeouts"`
	MaxConsecutiveTimeouts uint64 `json:"max_consecutive_timeouts"`
	Completions            uint64 `json:"completions"`
	Underruns              uint64 `json:"underruns"`
	Faults                 uint64 `json:"faults"`
}

// Driver keeps a transport fed from a generator using one working buffer
type Driver struct {
	gen       wave.Generator
	transport output.Transport
	cfg       Config
	logger    *zap.Logger
	obs       Observer

	buf    []byte
	frames int

	state atomic.Int32

	stopOnce sync.Once
	stopCh   chan struct{}

	// ready is stored by the completion callback and loaded by the producer
	ready   atomic.Bool
	readyCh chan struct{}

	buffers       atomic.Uint64
	framesOut     atomic.Uint64
	bytesOut      atomic.Uint64
	writeCalls    atomic.Uint64
	partialWrites atomic.Uint64
	timeouts      atomic.Uint64
	maxTimeouts   atomic.Uint64
	completions   atomic.Uint64
	underruns     atomic.Uint64
	faults        atomic.Uint64
}

// NewDriver allocates the working buffer and enables the transport.
// The transport must already be opened with a matching format.
func NewDriver(gen wave.Generator, transport output.Transport, cfg Config) (*Driver, error) {
	if gen == nil {
		return nil, errors.New("stream: nil generator")
	}
	if transport == nil {
		return nil, errors.New("stream: nil transport")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	frames := cfg.BufferFrames()
	d := &Driver{
		gen:       gen,
		transport: transport,
		cfg:       cfg,
		logger:    cfg.Logger,
		obs:       cfg.Observer,
		buf:       make([]byte, gen.Format().FramesToBytes(frames)),
		frames:    frames,
		stopCh:    make(chan struct{}),
		readyCh:   make(chan struct{}, 1),
	}
	d.state.Store(int32(Idle))

	if err := transport.Enable(); err != nil {
		return nil, fmt.Errorf("stream: enable transport: %w", err)
	}

	d.logger.Debug("driver ready",
		zap.Stringer("format", gen.Format()),
		zap.Int("buffer_frames", frames),
		zap.Int("buffer_bytes", len(d.buf)),
	)
	return d, nil
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	return State(d.state.Load())
}

// BufferBytes returns the working buffer size, zero once released
func (d *Driver) BufferBytes() int {
	if d.State().Terminal() {
		return 0
	}
	return d.frames * d.gen.Format().FrameSize()
}

// Stop requests the stream to end. Safe to call from any goroutine, any number of times.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Run streams until Stop, ctx cancellation or a transport fault.
// It returns nil when Stopped and a *FaultError when Faulted.
func (d *Driver) Run(ctx context.Context) error {
	return d.run(ctx, 0)
}

// RunCycles streams exactly n generate-then-transfer cycles unless stopped or faulted first
func (d *Driver) RunCycles(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("stream: invalid cycle count: %d", n)
	}
	return d.run(ctx, n)
}

// Stats returns a snapshot of the driver counters
func (d *Driver) Stats() Stats {
	return Stats{
		Buffers:                d.buffers.Load(),
		Frames:                 d.framesOut.Load(),
		Bytes:                  d.bytesOut.Load(),
		WriteCalls:             d.writeCalls.Load(),
		PartialWrites:          d.partialWrites.Load(),
		Timeouts:               d.timeouts.Load(),
		MaxConsecutiveTimeouts: d.maxTimeouts.Load(),
		Completions:            d.completions.Load(),
		Underruns:              d.underruns.Load(),
		Faults:                 d.faults.Load(),
	}
}

func (d *Driver) run(ctx context.Context, limit int) error {
	if !d.state.CompareAndSwap(int32(Idle), int32(Streaming)) {
		return ErrNotIdle
	}
	d.obs.StateChanged(Idle, Streaming)

	paced := false
	if n, ok := d.transport.(output.CompletionNotifier); ok {
		n.OnDescriptorDone(d.onDescriptorDone)
		paced = d.cfg.UseCompletion
	} else if d.cfg.UseCompletion {
		d.logger.Warn("transport does not report completions, using blocking writes")
	}

	d.logger.Info("stream started",
		zap.Stringer("format", d.gen.Format()),
		zap.Int("buffer_frames", d.frames),
		zap.Duration("max_wait", d.cfg.MaxWait),
		zap.Bool("completion_paced", paced),
		zap.Int("cycles", limit),
	)

	for cycle := 0; limit == 0 || cycle < limit; cycle++ {
		if d.stopRequested(ctx) {
			break
		}
		if paced && cycle > 0 && !d.awaitReady(ctx) {
			break
		}

		d.gen.Fill(d.buf, d.frames)
		d.obs.BufferFilled(d.frames, len(d.buf))

		written, err := d.writeAll(ctx)
		if errors.Is(err, errStopRequested) {
			break
		}
		if err != nil {
			d.faults.Add(1)
			d.obs.Faulted(err)
			d.logger.Error("transport fault, halting stream",
				zap.Error(err),
				zap.Int("written", written),
				zap.Int("pending", len(d.buf)-written),
			)
			return d.shutdown(Faulted, &FaultError{
				Err:     err,
				Written: written,
				Pending: len(d.buf) - written,
			})
		}

		d.buffers.Add(1)
		d.framesOut.Add(uint64(d.frames))
		if paced {
			d.ready.Store(false)
		}
	}

	return d.shutdown(Stopped, nil)
}

// writeAll transfers the whole working buffer, re-issuing the write for
// any unsent remainder. Timeouts are retried with the same remainder.
func (d *Driver) writeAll(ctx context.Context) (int, error) {
	written := 0
	consecutive := 0

	for written < len(d.buf) {
		if d.stopRequested(ctx) {
			return written, errStopRequested
		}

		remaining := d.buf[written:]
		start := time.Now()
		n, err := d.transport.Write(remaining, d.cfg.MaxWait)
		wait := time.Since(start)

		d.writeCalls.Add(1)
		if n > 0 {
			written += n
			d.bytesOut.Add(uint64(n))
			if n < len(remaining) {
				d.partialWrites.Add(1)
			}
		}
		d.obs.WriteReturned(n, len(remaining), wait)

		if errors.Is(err, output.ErrTimeout) {
			consecutive++
			d.timeouts.Add(1)
			d.recordConsecutive(uint64(consecutive))
			d.obs.WriteTimedOut(consecutive)
			if consecutive%d.cfg.TimeoutLogEvery == 0 {
				d.logger.Warn("transport write keeps timing out",
					zap.Int("consecutive", consecutive),
					zap.Int("pending", len(d.buf)-written),
				)
			}
			continue
		}
		if err != nil {
			return written, err
		}
		consecutive = 0
	}
	return written, nil
}

// shutdown disables the channel before releasing the buffer
func (d *Driver) shutdown(final State, cause error) error {
	err := cause
	if derr := d.transport.Disable(); derr != nil {
		err = multierr.Append(err, fmt.Errorf("stream: disable transport: %w", derr))
	}
	d.buf = nil

	d.state.Store(int32(final))
	d.obs.StateChanged(Streaming, final)

	stats := d.Stats()
	d.logger.Info("stream ended",
		zap.Stringer("state", final),
		zap.Uint64("buffers", stats.Buffers),
		zap.Uint64("bytes", stats.Bytes),
		zap.Uint64("timeouts", stats.Timeouts),
		zap.Uint64("underruns", stats.Underruns),
	)
	return err
}

func (d *Driver) stopRequested(ctx context.Context) bool {
	select {
	case <-d.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// onDescriptorDone runs on the transport's drain goroutine
func (d *Driver) onDescriptorDone(ev output.Event) bool {
	d.completions.Add(1)
	if ev.Underrun {
		d.underruns.Add(1)
		d.obs.Underrun()
	}
	d.ready.Store(true)
	select {
	case d.readyCh <- struct{}{}:
	default:
	}
	return d.State() == Streaming
}

// awaitReady blocks until a descriptor drained since the last transfer.
// A missing event never holds the producer longer than MaxWait.
func (d *Driver) awaitReady(ctx context.Context) bool {
	timer := time.NewTimer(d.cfg.MaxWait)
	defer timer.Stop()

	for !d.ready.Load() {
		select {
		case <-ctx.Done():
			return false
		case <-d.stopCh:
			return false
		case <-d.readyCh:
		case <-timer.C:
			d.logger.Debug("no completion event within max wait")
			return true
		}
	}
	return true
}

func (d *Driver) recordConsecutive(n uint64) {
	for {
		cur := d.maxTimeouts.Load()
		if n <= cur || d.maxTimeouts.CompareAndSwap(cur, n) {
			return
		}
	}
}

// ABOUTME: Descriptor queue shared by all transports
// ABOUTME: Bounded FIFO byte ring with blocking writes and per-descriptor completion events
package output

import (
	"sync"
	"time"
)

// descriptorQueue holds bytes waiting to be drained by the device.
// Writers block (bounded) while it is full; the drain side never blocks
// and pads with silence on underrun.
type descriptorQueue struct {
	mu       sync.Mutex
	buffer   []byte
	readPos  int
	writePos int
	count    int // bytes currently queued
	enabled  bool

	descBytes int
	drained   int    // bytes consumed toward the current descriptor
	underrun  bool   // current descriptor was padded
	seq       uint64 // completed descriptors since enable

	fault error // sticky drain-side failure returned to writers

	space     chan struct{}
	callbacks []func(Event) bool
	cbMu      sync.Mutex
}

func newDescriptorQueue(cfg Config) *descriptorQueue {
	return &descriptorQueue{
		buffer:    make([]byte, cfg.QueueBytes()),
		descBytes: cfg.DescriptorBytes(),
		space:     make(chan struct{}, 1),
	}
}

// push copies as much of p as fits, waiting up to maxWait for free space
func (q *descriptorQueue) push(p []byte, maxWait time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var timer *time.Timer
	for {
		q.mu.Lock()
		if q.fault != nil {
			err := q.fault
			q.mu.Unlock()
			return 0, err
		}
		if !q.enabled {
			q.mu.Unlock()
			return 0, ErrDisabled
		}

		if free := len(q.buffer) - q.count; free > 0 {
			n := len(p)
			if n > free {
				n = free
			}
			first := copy(q.buffer[q.writePos:], p[:n])
			copy(q.buffer, p[first:n])
			q.writePos = (q.writePos + n) % len(q.buffer)
			q.count += n
			q.mu.Unlock()
			return n, nil
		}
		q.mu.Unlock()

		if maxWait <= 0 {
			return 0, ErrTimeout
		}
		if timer == nil {
			timer = time.NewTimer(maxWait)
			defer timer.Stop()
		}

		select {
		case <-q.space:
		case <-timer.C:
			return 0, ErrTimeout
		}
	}
}

// pull fills p from the queue, zero-filling on underrun, and fires a
// completion event for every descriptor boundary crossed.
// It returns the number of queued bytes consumed.
func (q *descriptorQueue) pull(p []byte) int {
	var events []Event

	q.mu.Lock()
	read := 0
	if q.enabled {
		read = len(p)
		if read > q.count {
			read = q.count
		}
		first := copy(p[:read], q.buffer[q.readPos:])
		copy(p[first:read], q.buffer)
		q.readPos = (q.readPos + read) % len(q.buffer)
		q.count -= read
	}
	for i := read; i < len(p); i++ {
		p[i] = 0
	}

	if q.enabled {
		if read < len(p) {
			q.underrun = true
		}
		q.drained += len(p)
		for q.drained >= q.descBytes {
			q.drained -= q.descBytes
			q.seq++
			events = append(events, Event{Seq: q.seq, Underrun: q.underrun})
			q.underrun = false
		}
	}
	q.mu.Unlock()

	if read > 0 {
		q.signal()
	}
	for _, ev := range events {
		q.notify(ev)
	}
	return read
}

// fail records a drain-side error and wakes blocked writers
func (q *descriptorQueue) fail(err error) {
	q.mu.Lock()
	if q.fault == nil {
		q.fault = err
	}
	q.mu.Unlock()
	q.signal()
}

// setEnabled toggles the channel; disabling discards queued bytes
func (q *descriptorQueue) setEnabled(enabled bool) {
	q.mu.Lock()
	q.enabled = enabled
	q.readPos, q.writePos, q.count = 0, 0, 0
	q.drained, q.seq, q.underrun = 0, 0, false
	if enabled {
		q.fault = nil
	}
	q.mu.Unlock()
	q.signal()
}

// queued returns the number of bytes waiting to drain
func (q *descriptorQueue) queued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *descriptorQueue) signal() {
	select {
	case q.space <- struct{}{}:
	default:
	}
}

func (q *descriptorQueue) register(cb func(Event) bool) {
	q.cbMu.Lock()
	defer q.cbMu.Unlock()
	q.callbacks = append(q.callbacks, cb)
}

func (q *descriptorQueue) notify(ev Event) {
	q.cbMu.Lock()
	defer q.cbMu.Unlock()

	kept := q.callbacks[:0]
	for _, cb := range q.callbacks {
		if cb(ev) {
			kept = append(kept, cb)
		}
	}
	for i := len(kept); i < len(q.callbacks); i++ {
		q.callbacks[i] = nil
	}
	q.callbacks = kept
}

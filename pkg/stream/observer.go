// ABOUTME: Driver observation hooks
// ABOUTME: Lets metrics and UIs follow the stream without touching the hot path
package stream

import "time"

// Observer receives driver events. Methods run on the driver goroutine
// (Underrun on the transport's drain goroutine) and must not block.
type Observer interface {
	StateChanged(from, to State)
	BufferFilled(frames, bytes int)
	WriteReturned(accepted, requested int, wait time.Duration)
	WriteTimedOut(consecutive int)
	Underrun()
	Faulted(err error)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) BufferFilled(int, int) {}
func (nopObserver) WriteReturned(int, int, time.Duration) {}
func (nopObserver) WriteTimedOut(int) {}
func (nopObserver) Underrun() {}
func (nopObserver) Faulted(error) {}

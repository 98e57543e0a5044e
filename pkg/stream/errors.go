// ABOUTME: Stream driver errors
// ABOUTME: Fatal transport faults and lifecycle misuse
package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrFault matches every *FaultError via errors.Is
	ErrFault = errors.New("stream: transport fault")

	// ErrNotIdle is returned when Run is called on a driver that already ran
	ErrNotIdle = errors.New("stream: driver is not idle")
)

// FaultError reports a fatal transport error that halted the stream
type FaultError struct {
	Err error

	// Written is the number of bytes of the current buffer accepted before the fault
	Written int

	// Pending is the number of bytes of the current buffer never accepted
	Pending int
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("stream: transport fault after %d bytes (%d pending): %v", e.Written, e.Pending, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFault
func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

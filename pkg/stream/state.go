// ABOUTME: Driver lifecycle states
// ABOUTME: Idle, Streaming, Stopped and Faulted with string names
package stream

import "fmt"

// State is the driver lifecycle state
type State int32

const (
	Idle State = iota
	Streaming
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == Stopped || s == Faulted
}

// ABOUTME: Streaming driver package
// ABOUTME: Feeds generated PCM buffers to a transport without underrun or overrun
// Package stream keeps an output transport continuously fed from a wave
// generator.
//
// A Driver owns exactly one working buffer. Each cycle it fills the buffer
// with the next frames and writes it to the transport, re-issuing the write
// for any unsent remainder until the whole buffer is queued. The transport's
// own descriptor queue provides the pipelining; Write's bounded wait is the
// only place the driver blocks.
//
// State machine:
//
//	Idle -> Streaming -> Stopped   (Stop, context cancellation, bounded run finished)
//	                  -> Faulted   (transport error other than a timeout)
//
// Timeouts are retried with the same remainder and never advance the
// generator. Any other transport error halts the stream: the channel is
// disabled first, then the buffer is released, and a *FaultError is returned.
//
// Example:
//
//	gen, _ := wave.New(wave.Descriptor{Kind: wave.Sine, Frequency: 440, Format: audio.DefaultFormat()})
//	drv, err := stream.NewDriver(gen, transport, stream.DefaultConfig())
//	err = drv.Run(ctx)
package stream

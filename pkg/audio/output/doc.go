// ABOUTME: Audio output package for streaming PCM to transports
// ABOUTME: Provides the Transport interface and speaker, writer and network sinks
// Package output provides PCM transports.
//
// Every transport queues written bytes in a descriptor queue of
// Descriptors x DescriptorFrames frames that is drained in the background
// at the sample rate, by the audio device (Oto, Malgo, PortAudio) or by a
// clock goroutine (Writer, Headless, WebSocket). Write blocks for at most
// maxWait while the queue is full.
//
// Example:
//
//	out := output.NewOto(logger)
//	err := out.Open(output.Config{Format: audio.DefaultFormat(), Descriptors: 12, DescriptorFrames: 240})
//	err = out.Enable()
//	n, err := out.Write(pcm, 100*time.Millisecond)
package output

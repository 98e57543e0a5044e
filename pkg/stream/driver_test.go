// ABOUTME: Tests for the streaming driver
// ABOUTME: Scripted transports exercise partial writes, timeouts, faults and stops
package stream

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/wave"
)

// stubTransport accepts at most maxChunk bytes per call and follows a per-call script
type stubTransport struct {
	mu sync.Mutex

	maxChunk   int
	timeoutOn  map[int]bool // 1-based call numbers that time out
	faultOn    int          // 1-based call number that faults
	faultErr   error
	enableErr  error
	disableErr error
	delay      time.Duration
	onDisable  func()

	calls    int
	received []byte
	enables  int
	disables int
}

func (s *stubTransport) Open(output.Config) error { return nil }
func (s *stubTransport) Close() error             { return nil }

func (s *stubTransport) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enables++
	return s.enableErr
}

func (s *stubTransport) Disable() error {
	if s.onDisable != nil {
		s.onDisable()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disables++
	return s.disableErr
}

func (s *stubTransport) Write(p []byte, _ time.Duration) (int, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.faultOn == s.calls {
		return 0, s.faultErr
	}
	if s.timeoutOn[s.calls] {
		return 0, output.ErrTimeout
	}
	n := len(p)
	if s.maxChunk > 0 && n > s.maxChunk {
		n = s.maxChunk
	}
	s.received = append(s.received, p[:n]...)
	return n, nil
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// countingGen counts Fill calls
type countingGen struct {
	wave.Generator
	fills int
}

func (g *countingGen) Fill(buf []byte, frames int) {
	g.fills++
	g.Generator.Fill(buf, frames)
}

func newTone(t *testing.T) wave.Generator {
	t.Helper()
	gen, err := wave.New(wave.Descriptor{
		Kind:      wave.Sine,
		Frequency: 440,
		Format:    audio.DefaultFormat(),
	})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return gen
}

// smallConfig produces 100-frame (400-byte) buffers
func smallConfig() Config {
	return Config{
		Descriptors:      4,
		DescriptorFrames: 25,
		MaxWait:          10 * time.Millisecond,
	}
}

// expectedPCM renders what cycles buffers of a fresh tone must look like
func expectedPCM(t *testing.T, cfg Config, cycles int) []byte {
	t.Helper()
	gen := newTone(t)
	buf := make([]byte, gen.Format().FramesToBytes(cfg.BufferFrames()))
	var out []byte
	for i := 0; i < cycles; i++ {
		gen.Fill(buf, cfg.BufferFrames())
		out = append(out, buf...)
	}
	return out
}

func TestNewDriver(t *testing.T) {
	tr := &stubTransport{}
	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if d.State() != Idle {
		t.Errorf("expected Idle, got %v", d.State())
	}
	if tr.enables != 1 {
		t.Errorf("expected transport enabled once, got %d", tr.enables)
	}
	if tr.calls != 0 {
		t.Errorf("expected no data sent while idle, got %d writes", tr.calls)
	}
	if d.BufferBytes() != 400 {
		t.Errorf("expected 400-byte buffer, got %d", d.BufferBytes())
	}
}

func TestNewDriverRejects(t *testing.T) {
	tests := []struct {
		name      string
		gen       wave.Generator
		transport output.Transport
		cfg       Config
	}{
		{"nil generator", nil, &stubTransport{}, smallConfig()},
		{"nil transport", newTone(t), nil, smallConfig()},
		{"zero descriptors", newTone(t), &stubTransport{}, Config{DescriptorFrames: 10, MaxWait: time.Millisecond}},
		{"zero frames", newTone(t), &stubTransport{}, Config{Descriptors: 2, MaxWait: time.Millisecond}},
		{"zero wait", newTone(t), &stubTransport{}, Config{Descriptors: 2, DescriptorFrames: 10}},
		{"enable fails", newTone(t), &stubTransport{enableErr: errors.New("no clock")}, smallConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDriver(tt.gen, tt.transport, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPartialWritesCoverBuffer(t *testing.T) {
	tests := []struct {
		maxChunk      int
		expectedCalls int
	}{
		{maxChunk: 7, expectedCalls: 58},
		{maxChunk: 96, expectedCalls: 5},
		{maxChunk: 200, expectedCalls: 2},
		{maxChunk: 399, expectedCalls: 2},
		{maxChunk: 400, expectedCalls: 1},
		{maxChunk: 4096, expectedCalls: 1},
	}

	for _, tt := range tests {
		tr := &stubTransport{maxChunk: tt.maxChunk}
		d, err := NewDriver(newTone(t), tr, smallConfig())
		if err != nil {
			t.Fatalf("failed to create driver: %v", err)
		}

		if err := d.RunCycles(context.Background(), 1); err != nil {
			t.Fatalf("K=%d: unexpected error: %v", tt.maxChunk, err)
		}

		if tr.calls != tt.expectedCalls {
			t.Errorf("K=%d: expected %d write calls, got %d", tt.maxChunk, tt.expectedCalls, tr.calls)
		}
		if !bytes.Equal(tr.received, expectedPCM(t, smallConfig(), 1)) {
			t.Errorf("K=%d: transferred bytes differ from generated buffer", tt.maxChunk)
		}

		stats := d.Stats()
		if stats.Bytes != 400 || stats.Buffers != 1 || stats.Frames != 100 {
			t.Errorf("K=%d: unexpected stats %+v", tt.maxChunk, stats)
		}
		if stats.PartialWrites != uint64(tt.expectedCalls-1) {
			t.Errorf("K=%d: expected %d partial writes, got %d", tt.maxChunk, tt.expectedCalls-1, stats.PartialWrites)
		}
	}
}

func TestMultipleCyclesStayContinuous(t *testing.T) {
	tr := &stubTransport{maxChunk: 96}
	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if err := d.RunCycles(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bytes.Equal(tr.received, expectedPCM(t, smallConfig(), 5)) {
		t.Error("five cycles through a chunking transport differ from five direct fills")
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped after bounded run, got %v", d.State())
	}
	if tr.disables != 1 {
		t.Errorf("expected transport disabled once, got %d", tr.disables)
	}
}

func TestTimeoutRetriesSameRemainder(t *testing.T) {
	gen := &countingGen{Generator: newTone(t)}
	tr := &stubTransport{
		maxChunk:  150,
		timeoutOn: map[int]bool{1: true, 3: true, 4: true, 5: true},
	}
	d, err := NewDriver(gen, tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if err := d.RunCycles(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.fills != 1 {
		t.Errorf("expected generator filled once, got %d", gen.fills)
	}
	// 1 timeout, 150, 3 timeouts, 150, 100
	if tr.calls != 7 {
		t.Errorf("expected 7 write calls, got %d", tr.calls)
	}
	if !bytes.Equal(tr.received, expectedPCM(t, smallConfig(), 1)) {
		t.Error("timeouts lost or duplicated samples")
	}

	stats := d.Stats()
	if stats.Timeouts != 4 {
		t.Errorf("expected 4 timeouts, got %d", stats.Timeouts)
	}
	if stats.MaxConsecutiveTimeouts != 3 {
		t.Errorf("expected max 3 consecutive timeouts, got %d", stats.MaxConsecutiveTimeouts)
	}
}

func TestFaultHaltsStream(t *testing.T) {
	boom := errors.New("driver failure")
	gen := &countingGen{Generator: newTone(t)}
	tr := &stubTransport{maxChunk: 150, faultOn: 2, faultErr: boom}

	d, err := NewDriver(gen, tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	bufferHeldAtDisable := false
	tr.onDisable = func() { bufferHeldAtDisable = d.buf != nil }

	err = d.Run(context.Background())
	if err == nil {
		t.Fatal("expected fault")
	}
	if !errors.Is(err, ErrFault) {
		t.Errorf("expected ErrFault, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}

	var fe *FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FaultError, got %T", err)
	}
	if fe.Written != 150 || fe.Pending != 250 {
		t.Errorf("expected 150 written / 250 pending, got %d / %d", fe.Written, fe.Pending)
	}

	if d.State() != Faulted {
		t.Errorf("expected Faulted, got %v", d.State())
	}
	if tr.disables != 1 {
		t.Errorf("expected transport disabled once, got %d", tr.disables)
	}
	if !bufferHeldAtDisable {
		t.Error("buffer released before the transport was disabled")
	}
	if d.buf != nil {
		t.Error("buffer not released after fault")
	}
	if gen.fills != 1 {
		t.Errorf("expected no generation after fault, got %d fills", gen.fills)
	}
	if d.Stats().Faults != 1 {
		t.Errorf("expected 1 fault, got %d", d.Stats().Faults)
	}
}

func TestFaultJoinsDisableError(t *testing.T) {
	boom := errors.New("bus error")
	stuck := errors.New("channel stuck")
	tr := &stubTransport{faultOn: 1, faultErr: boom, disableErr: stuck}

	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	err = d.Run(context.Background())
	if !errors.Is(err, ErrFault) || !errors.Is(err, boom) {
		t.Errorf("expected transport fault in %v", err)
	}
	if !errors.Is(err, stuck) {
		t.Errorf("expected disable error in %v", err)
	}
}

func TestDisabledTransportFaults(t *testing.T) {
	tr := &stubTransport{faultOn: 1, faultErr: output.ErrDisabled}
	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if err := d.Run(context.Background()); !errors.Is(err, output.ErrDisabled) {
		t.Errorf("expected ErrDisabled fault, got %v", err)
	}
	if d.State() != Faulted {
		t.Errorf("expected Faulted, got %v", d.State())
	}
}

func TestStopEndsStreaming(t *testing.T) {
	tr := &stubTransport{maxChunk: 64, delay: time.Millisecond}
	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for tr.callCount() < 10 {
		if time.Now().After(deadline) {
			t.Fatal("driver never started writing")
		}
		time.Sleep(time.Millisecond)
	}

	d.Stop()
	d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}

	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}
	if tr.disables != 1 {
		t.Errorf("expected transport disabled once, got %d", tr.disables)
	}
}

func TestContextCancelStops(t *testing.T) {
	tr := &stubTransport{}
	d, err := NewDriver(newTone(t), tr, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}
	if tr.calls != 0 {
		t.Errorf("expected no writes, got %d", tr.calls)
	}
}

func TestRunOnlyOnce(t *testing.T) {
	d, err := NewDriver(newTone(t), &stubTransport{}, smallConfig())
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if err := d.RunCycles(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle, got %v", err)
	}
	if err := d.RunCycles(context.Background(), 0); err == nil {
		t.Error("expected error for zero cycles")
	}
}

type recordingObserver struct {
	nopObserver
	mu          sync.Mutex
	transitions []State
	filled      int
	timeouts    int
}

func (r *recordingObserver) StateChanged(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, to)
}

func (r *recordingObserver) BufferFilled(int, int) { r.filled++ }
func (r *recordingObserver) WriteTimedOut(int)     { r.timeouts++ }

func TestObserverSeesLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	cfg := smallConfig()
	cfg.Observer = obs

	tr := &stubTransport{timeoutOn: map[int]bool{2: true}}
	d, err := NewDriver(newTone(t), tr, cfg)
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	if err := d.RunCycles(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(obs.transitions) != 2 || obs.transitions[0] != Streaming || obs.transitions[1] != Stopped {
		t.Errorf("expected [streaming stopped], got %v", obs.transitions)
	}
	if obs.filled != 3 {
		t.Errorf("expected 3 fills, got %d", obs.filled)
	}
	if obs.timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", obs.timeouts)
	}
}

func TestCompletionPacing(t *testing.T) {
	out := output.NewHeadless(nil)
	outCfg := output.Config{
		Format:           audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16},
		Descriptors:      4,
		DescriptorFrames: 480,
	}
	if err := out.Open(outCfg); err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer out.Close()

	gen, err := wave.New(wave.Descriptor{Kind: wave.Triangle, Frequency: 1000, Format: outCfg.Format})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	d, err := NewDriver(gen, out, Config{
		Descriptors:      2,
		DescriptorFrames: 480,
		MaxWait:          100 * time.Millisecond,
		UseCompletion:    true,
	})
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}

	if err := d.RunCycles(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := d.Stats()
	if stats.Buffers != 5 {
		t.Errorf("expected 5 buffers, got %d", stats.Buffers)
	}
	if stats.Completions < 4 {
		t.Errorf("expected at least 4 completion events, got %d", stats.Completions)
	}
	if d.State() != Stopped {
		t.Errorf("expected Stopped, got %v", d.State())
	}
}

func TestCompletionWithoutNotifier(t *testing.T) {
	cfg := smallConfig()
	cfg.UseCompletion = true

	tr := &stubTransport{}
	d, err := NewDriver(newTone(t), tr, cfg)
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	if err := d.RunCycles(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Stats().Buffers != 3 {
		t.Errorf("expected blocking writes to carry on, got %d buffers", d.Stats().Buffers)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{Idle, "idle", false},
		{Streaming, "streaming", false},
		{Stopped, "stopped", true},
		{Faulted, "faulted", true},
		{State(9), "State(9)", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
		if tt.state.Terminal() != tt.terminal {
			t.Errorf("%v: expected terminal=%v", tt.state, tt.terminal)
		}
	}
}

// ABOUTME: Tests for the control server
// ABOUTME: Exercises every route through httptest
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/tonestream/internal/metrics"
	"github.com/Resonate-Protocol/tonestream/pkg/stream"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeStreamer struct {
	mu    sync.Mutex
	state stream.State
	stats stream.Stats
	stops int
}

func (f *fakeStreamer) State() stream.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStreamer) Stats() stream.Stats {
	return f.stats
}

func (f *fakeStreamer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = stream.Stopped
}

func (f *fakeStreamer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	tests := []struct {
		state    stream.State
		expected int
	}{
		{stream.Idle, http.StatusOK},
		{stream.Streaming, http.StatusOK},
		{stream.Stopped, http.StatusOK},
		{stream.Faulted, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		ts := newTestServer(t, Options{Streamer: &fakeStreamer{state: tt.state}})

		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.expected {
			t.Errorf("%v: expected %d, got %d", tt.state, tt.expected, resp.StatusCode)
		}
		if !strings.Contains(string(body), tt.state.String()) {
			t.Errorf("%v: expected state in body, got %q", tt.state, body)
		}
	}
}

func TestStatus(t *testing.T) {
	s := &fakeStreamer{
		state: stream.Streaming,
		stats: stream.Stats{Buffers: 12, Bytes: 11520 * 12, Timeouts: 3},
	}
	ts := newTestServer(t, Options{
		Streamer: s,
		Info: Info{
			Name:      "bench",
			Waveform:  "triangle",
			Frequency: 440,
			Format:    "16000Hz/2ch/16bit",
			Output:    "headless",
		},
		Listeners: func() int { return 2 },
	})

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON, got %q", ct)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}

	if status.State != "streaming" {
		t.Errorf("expected streaming, got %q", status.State)
	}
	if status.Waveform != "triangle" || status.Frequency != 440 || status.Name != "bench" {
		t.Errorf("unexpected info: %+v", status.Info)
	}
	if status.Stats.Buffers != 12 || status.Stats.Timeouts != 3 {
		t.Errorf("unexpected stats: %+v", status.Stats)
	}
	if status.Listeners == nil || *status.Listeners != 2 {
		t.Errorf("expected 2 listeners, got %v", status.Listeners)
	}
}

func TestStop(t *testing.T) {
	s := &fakeStreamer{state: stream.Streaming}
	ts := newTestServer(t, Options{Streamer: s})

	resp, err := http.Post(ts.URL+"/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if s.stopCount() != 1 {
		t.Errorf("expected Stop called once, got %d", s.stopCount())
	}

	getResp, err := http.Get(ts.URL + "/stop")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /stop, got %d", getResp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)
	c.BufferFilled(240, 960)

	ts := newTestServer(t, Options{Streamer: &fakeStreamer{}, Gatherer: reg})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "tonestream_buffers_total 1") {
		t.Errorf("expected buffer counter in metrics output:\n%s", body)
	}
}

func TestStreamMount(t *testing.T) {
	ts := newTestServer(t, Options{Streamer: &fakeStreamer{}})
	resp, err := http.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without a stream handler, got %d", resp.StatusCode)
	}

	mounted := newTestServer(t, Options{
		Streamer: &fakeStreamer{},
		Stream: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	resp, err = http.Get(mounted.URL + "/stream")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected stream handler to serve /stream, got %d", resp.StatusCode)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Options{Streamer: &fakeStreamer{}})
	if s.Port() != 0 {
		t.Errorf("expected no port before Start, got %d", s.Port())
	}
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", s.Port()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

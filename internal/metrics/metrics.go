// ABOUTME: Prometheus metrics for the tone stream
// ABOUTME: Collector observes the driver and exports counters, gauges and write latency
package metrics

import (
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tonestream"

// Collector implements stream.Observer on top of a Prometheus registry
type Collector struct {
	State prometheus.Gauge

	BuffersTotal       prometheus.Counter
	FramesTotal        prometheus.Counter
	BytesTotal         prometheus.Counter
	WriteCallsTotal    prometheus.Counter
	PartialWritesTotal prometheus.Counter
	TimeoutsTotal      prometheus.Counter
	UnderrunsTotal     prometheus.Counter
	FaultsTotal        prometheus.Counter

	ConsecutiveTimeouts prometheus.Gauge

	WriteWait prometheus.Histogram
}

// New registers the stream metrics with reg
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		// Gauges
		State: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Driver state (0 idle, 1 streaming, 2 stopped, 3 faulted)",
		}),
		ConsecutiveTimeouts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_timeouts",
			Help:      "Current run of write timeouts on the buffer in flight",
		}),

		// Counters
		BuffersTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_total",
			Help:      "Buffers generated",
		}),
		FramesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames generated",
		}),
		BytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "PCM bytes accepted by the transport",
		}),
		WriteCallsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_calls_total",
			Help:      "Transport write calls",
		}),
		PartialWritesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_writes_total",
			Help:      "Writes that accepted part of the remainder",
		}),
		TimeoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_timeouts_total",
			Help:      "Writes that accepted nothing within the max wait",
		}),
		UnderrunsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "underruns_total",
			Help:      "Descriptors padded with silence by the transport",
		}),
		FaultsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Fatal transport faults",
		}),

		// Histograms
		WriteWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_wait_seconds",
			Help:      "Time spent blocked in transport writes",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (c *Collector) StateChanged(_, to stream.State) {
	c.State.Set(float64(to))
}

func (c *Collector) BufferFilled(frames, _ int) {
	c.BuffersTotal.Inc()
	c.FramesTotal.Add(float64(frames))
}

func (c *Collector) WriteReturned(accepted, requested int, wait time.Duration) {
	c.WriteCallsTotal.Inc()
	c.WriteWait.Observe(wait.Seconds())
	if accepted > 0 {
		c.BytesTotal.Add(float64(accepted))
		c.ConsecutiveTimeouts.Set(0)
		if accepted < requested {
			c.PartialWritesTotal.Inc()
		}
	}
}

func (c *Collector) WriteTimedOut(consecutive int) {
	c.TimeoutsTotal.Inc()
	c.ConsecutiveTimeouts.Set(float64(consecutive))
}

func (c *Collector) Underrun() {
	c.UnderrunsTotal.Inc()
}

func (c *Collector) Faulted(error) {
	c.FaultsTotal.Inc()
}

var _ stream.Observer = (*Collector)(nil)

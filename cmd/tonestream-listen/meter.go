// ABOUTME: Level meter for received PCM
// ABOUTME: Tracks peak, RMS and zero-crossing frequency of one channel per report window
package main

import (
	"math"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// Reading summarizes one report window
type Reading struct {
	Samples   int
	Peak      int16
	PeakDBFS  float64
	RMS       float64
	Frequency float64 // estimated from rising zero crossings
}

// Meter accumulates mono samples until Reset
type Meter struct {
	sampleRate int

	samples   int
	peak      int16
	sumSquare float64
	crossings int
	last      int16
	primed    bool
}

// NewMeter creates a meter for a stream at sampleRate
func NewMeter(sampleRate int) *Meter {
	return &Meter{sampleRate: sampleRate}
}

// Add feeds one channel's samples
func (m *Meter) Add(samples []int16) {
	for _, s := range samples {
		abs := s
		if abs < 0 {
			if abs == audio.MinInt16 {
				abs = audio.MaxInt16
			} else {
				abs = -abs
			}
		}
		if abs > m.peak {
			m.peak = abs
		}
		m.sumSquare += float64(s) * float64(s)

		if m.primed && m.last < 0 && s >= 0 {
			m.crossings++
		}
		m.last = s
		m.primed = true
	}
	m.samples += len(samples)
}

// Reading returns the current window summary
func (m *Meter) Reading() Reading {
	r := Reading{Samples: m.samples, Peak: m.peak, PeakDBFS: math.Inf(-1)}
	if m.samples == 0 {
		return r
	}
	if m.peak > 0 {
		r.PeakDBFS = 20 * math.Log10(float64(m.peak)/audio.MaxInt16)
	}
	r.RMS = math.Sqrt(m.sumSquare/float64(m.samples)) / audio.MaxInt16
	r.Frequency = float64(m.crossings) * float64(m.sampleRate) / float64(m.samples)
	return r
}

// Reset starts a new window, keeping the last sample for crossing detection
func (m *Meter) Reset() {
	m.samples, m.peak, m.sumSquare, m.crossings = 0, 0, 0, 0
}

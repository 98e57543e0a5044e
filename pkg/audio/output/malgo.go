// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Callback-driven playback via miniaudio with per-period completion events
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Malgo output implementation using malgo/miniaudio library.
// The device callback drains the descriptor queue once per period.
type Malgo struct {
	logger *zap.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	queue    *descriptorQueue
	cfg      Config
	enabled  bool
}

// NewMalgo creates a new Malgo output
func NewMalgo(logger *zap.Logger) *Malgo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Malgo{logger: logger}
}

// Open initializes the playback device with one period per descriptor
func (m *Malgo) Open(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.logger.Info("format change, reinitializing device",
			zap.Stringer("from", m.cfg.Format), zap.Stringer("to", cfg.Format))
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	queue := newDescriptorQueue(cfg)
	frameSize := cfg.Format.FrameSize()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Format.Channels)
	deviceConfig.SampleRate = uint32(cfg.Format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.DescriptorFrames)
	deviceConfig.Periods = uint32(cfg.Descriptors)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			queue.pull(pOutput[:int(frameCount)*frameSize])
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.queue = queue
	m.cfg = cfg

	m.logger.Info("audio output initialized",
		zap.String("backend", "malgo"),
		zap.Stringer("format", cfg.Format),
		zap.Int("periods", cfg.Descriptors),
		zap.Int("period_frames", cfg.DescriptorFrames),
		zap.Stringer("clock", cfg.Clock),
	)
	return nil
}

// Enable starts the device
func (m *Malgo) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	if m.enabled {
		return nil
	}

	m.queue.setEnabled(true)
	if err := m.device.Start(); err != nil {
		m.queue.setEnabled(false)
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.enabled = true
	return nil
}

// Disable stops the device and discards queued data
func (m *Malgo) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	if !m.enabled {
		return nil
	}

	err := m.device.Stop()
	m.queue.setEnabled(false)
	m.enabled = false
	if err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Write queues PCM bytes for playback
func (m *Malgo) Write(p []byte, maxWait time.Duration) (int, error) {
	m.mu.Lock()
	queue := m.queue
	m.mu.Unlock()

	if queue == nil {
		return 0, ErrNotOpen
	}
	return queue.push(p, maxWait)
}

// OnDescriptorDone registers a callback fired once per drained device period
func (m *Malgo) OnDescriptorDone(cb func(Event) bool) {
	m.mu.Lock()
	queue := m.queue
	m.mu.Unlock()

	if queue != nil {
		queue.register(cb)
	}
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", zap.Error(err))
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if m.enabled {
		if err := m.device.Stop(); err != nil {
			m.logger.Warn("device stop error", zap.Error(err))
		}
	}
	m.device.Uninit()
	m.device = nil
	m.queue.setEnabled(false)
	m.enabled = false
}

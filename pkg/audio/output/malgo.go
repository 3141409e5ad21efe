//go:build cgo

// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo; the device callback drains a ring buffer
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/encode"
)

func init() {
	register("malgo", func(cfg Config) Device { return NewMalgo(cfg) })
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	cfg      Config
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	encoder  encode.Encoder
	scratch  []int16
	ready    bool

	// Ring buffer for callback-based playback
	ringBuffer *RingBuffer
	mu         sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo(cfg Config) *Malgo {
	return &Malgo{cfg: cfg.withDefaults()}
}

// Name identifies the backend
func (m *Malgo) Name() string { return "malgo" }

// Open initializes the output device with specified format
func (m *Malgo) Open(format audio.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.format.SameStream(format) {
		log.Debug("Audio output already initialized with same format, reusing device")
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Infof("Format change detected (%s -> %s), reinitializing device", m.format, format)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	enc, err := encode.NewPCM(audio.Format{SampleRate: format.SampleRate, Channels: format.Channels, BitDepth: 16})
	if err != nil {
		return err
	}
	m.encoder = enc
	m.format = format
	m.ringBuffer = NewRingBuffer(format.SamplesFor(time.Duration(m.cfg.BufferMs) * time.Millisecond))

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(m.cfg.PeriodMs)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.ready = true

	log.Infof("Audio output initialized: %s (malgo)", format)
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.format.Channels
	if cap(m.scratch) < total {
		m.scratch = make([]int16, total)
	}
	samples := m.scratch[:total]
	m.ringBuffer.Read(samples)
	m.encoder.EncodeInto(pOutput, samples)
}

// Available returns free ring space, or ErrUnderrun once after the callback starved
func (m *Malgo) Available() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return 0, ErrNotOpen
	}
	if m.ringBuffer.TakeStarved() {
		return 0, ErrUnderrun
	}
	free := m.ringBuffer.Free()
	return free - free%m.format.Channels, nil
}

// Write queues audio samples for playback
func (m *Malgo) Write(samples []int16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return 0, ErrNotOpen
	}
	n := len(samples) - len(samples)%m.format.Channels
	if free := m.ringBuffer.Free(); n > free {
		n = free - free%m.format.Channels
	}
	return m.ringBuffer.Write(samples[:n]), nil
}

// Recover is a no-op; miniaudio keeps pulling silence while starved
func (m *Malgo) Recover() error { return nil }

// Pause stops or restarts the device
func (m *Malgo) Pause(paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNotOpen
	}
	if paused {
		return m.device.Stop()
	}
	return m.device.Start()
}

// Drop discards queued audio
func (m *Malgo) Drop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ringBuffer != nil {
		m.ringBuffer.Reset()
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Warnf("malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Warnf("device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

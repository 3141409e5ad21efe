//go:build linux

// ABOUTME: ALSA output implementation for Linux
// ABOUTME: Drives a hw PCM through gen2brain/alsa with underrun recovery
package output

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/alsa"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/encode"
)

func init() {
	register("alsa", func(cfg Config) Device { return NewALSA(cfg) })
	DefaultBackend = "alsa"
}

// ALSA output implementation using the kernel PCM interface
type ALSA struct {
	cfg     Config
	mu      sync.Mutex
	pcm     *alsa.PCM
	format  audio.Format
	encoder encode.Encoder
	raw     []byte
	started bool
}

// sampleFormats lists the PCM layouts tried in order; packed 24-bit covers
// devices that reject S16_LE
var sampleFormats = []alsa.PcmFormat{
	alsa.SNDRV_PCM_FORMAT_S16_LE,
	alsa.SNDRV_PCM_FORMAT_S24_3LE,
}

// NewALSA creates a new ALSA output
func NewALSA(cfg Config) *ALSA {
	return &ALSA{cfg: cfg.withDefaults()}
}

// Name identifies the backend
func (a *ALSA) Name() string { return "alsa" }

// Open configures the PCM for interleaved S16_LE (or packed S24) at the format's rate
func (a *ALSA) Open(format audio.Format) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm != nil {
		if a.format.SameStream(format) {
			log.Debug("ALSA output already initialized with same format, reusing device")
			return nil
		}
		log.Infof("Format change detected (%s -> %s), reopening PCM", a.format, format)
		a.closePCM()
	}

	periodFrames := uint32(format.SampleRate * a.cfg.PeriodMs / 1000)
	periodCount := uint32(a.cfg.BufferMs / a.cfg.PeriodMs)
	if periodCount < 2 {
		periodCount = 2
	}

	cfg := alsa.Config{
		Channels:       uint32(format.Channels),
		Rate:           uint32(format.SampleRate),
		PeriodSize:     periodFrames,
		PeriodCount:    periodCount,
		StartThreshold: periodFrames,
	}

	var pcm *alsa.PCM
	var err error
	for _, f := range sampleFormats {
		cfg.Format = f
		pcm, err = alsa.PcmOpenByName(a.cfg.Device, alsa.PCM_OUT, &cfg)
		if err == nil {
			break
		}
		log.Debug("ALSA rejected sample format", "device", a.cfg.Device, "format", alsa.PcmParamFormatNames[f], "err", err)
	}
	if err != nil {
		return fmt.Errorf("failed to open PCM %s: %w", a.cfg.Device, err)
	}
	if err := pcm.Prepare(); err != nil {
		pcm.Close()
		return fmt.Errorf("failed to prepare PCM: %w", err)
	}

	enc, err := encoderFor(cfg.Format, format)
	if err != nil {
		pcm.Close()
		return err
	}

	a.pcm = pcm
	a.format = format
	a.encoder = enc
	a.started = false

	log.Infof("Audio output initialized: %s (alsa %s %s, buffer %d frames, period %d frames)",
		format, a.cfg.Device, alsa.PcmParamFormatNames[cfg.Format], pcm.BufferSize(), pcm.PeriodSize())

	return nil
}

// encoderFor returns the encoder matching the PCM sample layout
func encoderFor(f alsa.PcmFormat, format audio.Format) (encode.Encoder, error) {
	format.BitDepth = int(alsa.PcmFormatToBits(f))
	return encode.NewPCM(format)
}

// Available converts the free hardware buffer into samples
func (a *ALSA) Available() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return 0, ErrNotOpen
	}

	bufferFrames := int(a.pcm.BufferSize())
	state := a.pcm.State()
	if state == alsa.SNDRV_PCM_STATE_XRUN {
		return 0, ErrUnderrun
	}
	if state != alsa.SNDRV_PCM_STATE_RUNNING && !a.started {
		return bufferFrames * a.format.Channels, nil
	}

	delay, err := a.pcm.Delay()
	if err != nil {
		if errors.Is(err, syscall.EPIPE) {
			return 0, ErrUnderrun
		}
		return 0, fmt.Errorf("alsa delay query failed: %w", err)
	}

	free := bufferFrames - int(delay)
	if free < 0 {
		free = 0
	}
	return free * a.format.Channels, nil
}

// Write encodes samples and hands them to the PCM
func (a *ALSA) Write(samples []int16) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return 0, ErrNotOpen
	}

	frames := len(samples) / a.format.Channels
	if frames == 0 {
		return 0, nil
	}
	need := frames * a.format.Channels * a.encoder.BytesPerSample()
	if cap(a.raw) < need {
		a.raw = make([]byte, need)
	}
	raw := a.raw[:need]
	a.encoder.EncodeInto(raw, samples[:frames*a.format.Channels])

	written, err := a.pcm.Write(raw)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) {
			return 0, ErrUnderrun
		}
		return 0, fmt.Errorf("alsa write failed: %w", err)
	}
	a.started = true

	return written * a.format.Channels, nil
}

// Recover re-prepares the PCM after an xrun
func (a *ALSA) Recover() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return ErrNotOpen
	}
	a.started = false
	if err := a.pcm.Prepare(); err != nil {
		return fmt.Errorf("alsa recover failed: %w", err)
	}
	return nil
}

// Pause halts the PCM; drivers without pause support are left running
func (a *ALSA) Pause(paused bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return ErrNotOpen
	}
	if !a.started {
		return nil
	}
	if err := a.pcm.Pause(paused); err != nil {
		if errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.ENOTTY) {
			log.Debug("ALSA device does not support pause")
			return nil
		}
		return fmt.Errorf("alsa pause failed: %w", err)
	}
	return nil
}

// Drop stops the PCM immediately, discarding pending frames
func (a *ALSA) Drop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return nil
	}
	if err := a.pcm.Stop(); err != nil {
		log.Warnf("alsa drop: %v", err)
	}
	a.started = false
	if err := a.pcm.Prepare(); err != nil {
		return fmt.Errorf("alsa prepare after drop failed: %w", err)
	}
	return nil
}

// Close releases the PCM
func (a *ALSA) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closePCM()
}

// closePCM closes the handle (must hold a.mu)
func (a *ALSA) closePCM() error {
	if a.pcm == nil {
		return nil
	}
	err := a.pcm.Close()
	a.pcm = nil
	a.started = false
	return err
}

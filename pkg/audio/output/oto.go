// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds a persistent oto player from a ring buffer; one context per process
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/encode"
)

// oto allows a single context per process, so it is shared by every Oto device
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto output implementation using oto library
type Oto struct {
	cfg     Config
	mu      sync.Mutex
	player  *oto.Player
	ring    *RingBuffer
	format  audio.Format
	encoder encode.Encoder
	ready   bool
}

// NewOto creates a new Oto output
func NewOto(cfg Config) *Oto {
	return &Oto{cfg: cfg.withDefaults()}
}

// Name identifies the backend
func (o *Oto) Name() string { return "oto" }

// LockedFormat reports the format of the process-wide oto context
func (o *Oto) LockedFormat() (audio.Format, bool) {
	otoMu.Lock()
	defer otoMu.Unlock()
	return otoFormat, otoCtx != nil
}

// Open creates (or reuses) the oto context and starts a player
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready && o.format.SameStream(format) {
		log.Debug("Audio output already initialized with same format, reusing player")
		return nil
	}

	if err := ensureOtoContext(format, o.cfg.PeriodMs); err != nil {
		return err
	}

	enc, err := encode.NewPCM(audio.Format{SampleRate: format.SampleRate, Channels: format.Channels, BitDepth: 16})
	if err != nil {
		return err
	}

	if o.player != nil {
		o.player.Close()
	}

	o.ring = NewRingBuffer(format.SamplesFor(time.Duration(o.cfg.BufferMs) * time.Millisecond))
	o.encoder = enc
	o.format = format
	o.player = otoCtx.NewPlayer(&ringReader{ring: o.ring, encoder: enc})
	// Keep oto's own buffer to one period so Available tracks real latency
	o.player.SetBufferSize(format.SamplesFor(time.Duration(o.cfg.PeriodMs)*time.Millisecond) * 2)
	o.player.Play()
	o.ready = true

	log.Infof("Audio output initialized: %s (oto)", format)
	return nil
}

// ensureOtoContext creates the shared context or checks it matches format
func ensureOtoContext(format audio.Format, periodMs int) error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat.SampleRate != format.SampleRate || otoFormat.Channels != format.Channels {
			return fmt.Errorf("%w: oto context is %s, requested %s", ErrFormatLocked, otoFormat, format)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(periodMs) * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = audio.Format{SampleRate: format.SampleRate, Channels: format.Channels, BitDepth: 16}
	return nil
}

// Available returns free ring space, or ErrUnderrun once after the player starved
func (o *Oto) Available() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return 0, ErrNotOpen
	}
	if o.ring.TakeStarved() {
		return 0, ErrUnderrun
	}
	free := o.ring.Free()
	return free - free%o.format.Channels, nil
}

// Write queues samples for the player
func (o *Oto) Write(samples []int16) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return 0, ErrNotOpen
	}
	n := len(samples) - len(samples)%o.format.Channels
	if free := o.ring.Free(); n > free {
		n = free - free%o.format.Channels
	}
	return o.ring.Write(samples[:n]), nil
}

// Recover is a no-op; the player keeps pulling silence while starved
func (o *Oto) Recover() error { return nil }

// Pause pauses or resumes the player
func (o *Oto) Pause(paused bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return ErrNotOpen
	}
	if paused {
		o.player.Pause()
	} else {
		o.player.Play()
	}
	return nil
}

// Drop discards queued audio
func (o *Oto) Drop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ring != nil {
		o.ring.Reset()
	}
	return nil
}

// Close stops the player; the shared context stays alive for reuse
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	if o.ring != nil {
		o.ring.Reset()
	}
	o.ready = false
	return err
}

// ringReader adapts the ring buffer to the io.Reader oto pulls from
type ringReader struct {
	ring    *RingBuffer
	encoder encode.Encoder
	scratch []int16
}

func (r *ringReader) Read(p []byte) (int, error) {
	samples := len(p) / 2
	if cap(r.scratch) < samples {
		r.scratch = make([]int16, samples)
	}
	buf := r.scratch[:samples]
	r.ring.Read(buf)
	return r.encoder.EncodeInto(p, buf), nil
}

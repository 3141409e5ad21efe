// ABOUTME: Polling playback engine
// ABOUTME: Owns the sample queue, the device writer loop and session lifecycle
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/output"
)

// Config tunes the writer loop
type Config struct {
	// PollInterval is the sleep between writer iterations
	PollInterval time.Duration

	// Period bounds how much audio one iteration hands to the device
	Period time.Duration

	// OnUnderrun is called from the writer goroutine after each device underrun
	OnUnderrun func()
}

// DefaultConfig returns a 10ms poll with 50ms periods
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Millisecond,
		Period:       50 * time.Millisecond,
	}
}

// Stats is a snapshot of engine state
type Stats struct {
	SessionID  string
	Buffered   int
	Processed  int64
	Underruns  int64
	Volume     float64
	Playing    bool
	Paused     bool
	EOF        bool
	Completed  bool
	Elapsed    time.Duration
	LastResult CompletionResult
}

// Engine moves one track's samples from a queue to an output device
type Engine struct {
	cfg    Config
	device output.Device
	queue  *SampleQueue

	// lifecycle, guarded by mu; the writer goroutine never takes mu
	mu      sync.Mutex
	format  audio.Format
	period  int
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	initialized atomic.Bool
	paused      atomic.Bool
	volume      atomic.Uint64
	underruns   atomic.Int64
	sess        atomic.Pointer[session]

	cbMu     sync.Mutex
	callback func(CompletionResult)

	resultMu   sync.Mutex
	lastResult CompletionResult

	// writer-goroutine scratch
	scratch []int16
}

// New creates an engine driving device
func New(device output.Device, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}

	e := &Engine{
		cfg:    cfg,
		device: device,
		queue:  NewSampleQueue(),
	}
	e.volume.Store(math.Float64bits(1.0))
	return e
}

// Initialize opens the device for format
func (e *Engine) Initialize(format audio.Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !format.Valid() {
		return &Error{Code: DeviceFailure, Op: "initialize", Err: fmt.Errorf("invalid format %s", format)}
	}
	if e.initialized.Load() {
		if e.format.SameStream(format) {
			return nil
		}
		return &Error{Code: DeviceFailure, Op: "initialize", Err: fmt.Errorf("%w with %s", ErrAlreadyInitialized, e.format)}
	}

	if err := e.device.Open(format); err != nil {
		return &Error{Code: DeviceFailure, Op: "initialize", Err: err}
	}

	e.format = format
	e.period = format.SamplesFor(e.cfg.Period)
	if e.period < format.Channels {
		e.period = format.Channels
	}
	e.scratch = make([]int16, e.period)
	e.initialized.Store(true)

	log.Infof("Engine initialized: %s on %s (period %d samples)", format, e.device.Name(), e.period)
	return nil
}

// Start begins a new session and launches the writer loop
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized.Load() {
		return &Error{Code: DeviceFailure, Op: "start", Err: ErrNotInitialized}
	}
	if e.running {
		e.haltLocked()
	}

	s := newSession()
	e.sess.Store(s)
	if e.paused.Swap(false) {
		if err := e.device.Pause(false); err != nil {
			log.Warnf("Device resume failed: %v", err)
		}
	}
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.running = true

	go e.writerLoop(s, e.stopCh, e.done)

	log.Debug("Playback session started", "session", s.id)
	return nil
}

// Stop ends the session: signal, join the writer, discard queued audio, clear the callback.
// Safe to call repeatedly.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	return nil
}

// stopLocked implements Stop (must hold e.mu)
func (e *Engine) stopLocked() {
	e.haltLocked()
	e.SetCompletionCallback(nil)
}

// haltLocked joins the writer and discards audio, keeping the callback (must hold e.mu)
func (e *Engine) haltLocked() {
	// A manually stopped session never reports completion
	if s := e.sess.Load(); s != nil {
		s.stopped.Store(true)
	}

	if e.running {
		close(e.stopCh)
		<-e.done
		e.running = false
	}

	if dropped := e.queue.Clear(); dropped > 0 {
		log.Debug("Discarded queued samples", "samples", dropped)
	}
	if e.initialized.Load() {
		if err := e.device.Drop(); err != nil {
			log.Warnf("Device drop failed: %v", err)
		}
	}
}

// Shutdown stops playback and releases the device
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	if !e.initialized.Load() {
		return nil
	}
	e.initialized.Store(false)
	if err := e.device.Close(); err != nil {
		return &Error{Code: DeviceFailure, Op: "shutdown", Err: err}
	}
	return nil
}

// Pause stops feeding the device without discarding the queue
func (e *Engine) Pause() {
	if e.paused.Swap(true) {
		return
	}
	if e.initialized.Load() {
		if err := e.device.Pause(true); err != nil {
			log.Warnf("Device pause failed: %v", err)
		}
	}
}

// Resume continues feeding the device
func (e *Engine) Resume() {
	if !e.paused.Swap(false) {
		return
	}
	if e.initialized.Load() {
		if err := e.device.Pause(false); err != nil {
			log.Warnf("Device resume failed: %v", err)
		}
	}
}

// WriteSamples appends a copy of samples to the queue
func (e *Engine) WriteSamples(samples []int16) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	// A failed device only drains; keeping the queue empty lets completion fire
	if s := e.sess.Load(); s != nil && s.deviceFailed() {
		return nil
	}
	e.queue.Push(samples)
	return nil
}

// BufferedSamples returns the queue depth
func (e *Engine) BufferedSamples() int {
	return e.queue.Len()
}

// SetVolume sets the gain, clamped to [0, 1]
func (e *Engine) SetVolume(v float64) {
	e.volume.Store(math.Float64bits(audio.ClampVolume(v)))
}

// Volume returns the current gain
func (e *Engine) Volume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// SetCompletionCallback registers the one-shot completion handler; nil clears it
func (e *Engine) SetCompletionCallback(cb func(CompletionResult)) {
	e.cbMu.Lock()
	e.callback = cb
	e.cbMu.Unlock()
}

// SignalEOF marks end of stream and re-evaluates completion
func (e *Engine) SignalEOF() {
	s := e.sess.Load()
	if s == nil {
		return
	}
	s.eof.Store(true)
	e.evaluate(s)
}

// IsPlaying reports whether a session is running and not paused
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && !e.paused.Load()
}

// IsPaused reports the pause flag
func (e *Engine) IsPaused() bool {
	return e.paused.Load()
}

// PeriodSamples returns the per-iteration write size
func (e *Engine) PeriodSamples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.period
}

// Format returns the initialized format
func (e *Engine) Format() audio.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}

// SessionID identifies the current session
func (e *Engine) SessionID() string {
	if s := e.sess.Load(); s != nil {
		return s.id
	}
	return ""
}

// Stats returns a snapshot of engine state
func (e *Engine) Stats() Stats {
	st := Stats{
		Buffered:  e.queue.Len(),
		Underruns: e.underruns.Load(),
		Volume:    e.Volume(),
		Playing:   e.IsPlaying(),
		Paused:    e.paused.Load(),
	}
	if s := e.sess.Load(); s != nil {
		st.SessionID = s.id
		st.Processed = s.processed.Load()
		st.EOF = s.eof.Load()
		st.Completed = s.fired.Load()
		st.Elapsed = time.Since(s.started)
	}
	e.resultMu.Lock()
	st.LastResult = e.lastResult
	e.resultMu.Unlock()
	return st
}

// writerLoop drains the queue into the device until stop is closed
func (e *Engine) writerLoop(s *session, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.tick(s)
		}
	}
}

// tick performs one writer iteration
func (e *Engine) tick(s *session) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Writer loop panic (session %s): %v", s.id, r)
			s.fail(ThreadingError, fmt.Sprint(r))
			e.queue.Clear()
			e.evaluate(s)
		}
	}()

	if e.paused.Load() {
		return
	}

	depth := e.queue.Len()
	if depth == 0 {
		e.evaluate(s)
		return
	}
	if s.deviceFailed() {
		e.queue.Clear()
		e.evaluate(s)
		return
	}
	// A trailing partial frame can never be written; after EOF it is dropped
	if depth < e.format.Channels && s.eof.Load() {
		log.Debug("Dropping partial frame at end of stream", "session", s.id, "samples", depth)
		e.queue.Discard(depth)
		e.evaluate(s)
		return
	}

	avail, err := e.device.Available()
	if err != nil {
		e.handleDeviceError(s, "available", err)
		return
	}

	n := min(avail, depth, e.period)
	n -= n % e.format.Channels
	if n <= 0 {
		return
	}

	buf := e.scratch[:n]
	n = e.queue.Peek(buf)
	buf = buf[:n]
	audio.ApplyVolume(buf, e.Volume())

	written, err := e.device.Write(buf)
	if written > 0 {
		e.queue.Discard(written)
		s.processed.Add(int64(written))
	}
	if err != nil {
		e.handleDeviceError(s, "write", err)
		return
	}

	if e.queue.Len() == 0 {
		e.evaluate(s)
	}
}

// handleDeviceError recovers underruns and fails the session on anything else
func (e *Engine) handleDeviceError(s *session, op string, err error) {
	if errors.Is(err, output.ErrUnderrun) {
		e.underruns.Add(1)
		if e.cfg.OnUnderrun != nil {
			e.cfg.OnUnderrun()
		}
		log.Debug("Device underrun, recovering", "session", s.id, "op", op)
		if rerr := e.device.Recover(); rerr != nil {
			log.Warnf("Underrun recovery failed: %v", rerr)
			s.fail(BufferUnderrun, rerr.Error())
		}
		return
	}

	log.Errorf("Device %s failed (session %s): %v", op, s.id, err)
	s.fail(DeviceFailure, fmt.Sprintf("%s: %v", op, err))
	e.queue.Clear()
	e.evaluate(s)
}

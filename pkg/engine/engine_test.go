// ABOUTME: Tests for the playback engine and completion detector
// ABOUTME: Exercises exactly-once completion, volume, underruns and teardown with a fake device
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/output"
)

var testFormat = audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

// fakeDevice accepts samples according to a scripted capacity
type fakeDevice struct {
	mu           sync.Mutex
	openErr      error
	writeErr     error
	capacity     int // samples accepted per Available call; <0 means unlimited
	underruns    int // pending ErrUnderrun results from Available
	recoverCalls int
	pauseCalls   int
	drops        int
	closed       bool
	received     []int16
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{capacity: -1}
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(audio.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openErr
}

func (d *fakeDevice) Available() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.underruns > 0 {
		d.underruns--
		return 0, output.ErrUnderrun
	}
	if d.capacity < 0 {
		return 1 << 20, nil
	}
	return d.capacity, nil
}

func (d *fakeDevice) Write(samples []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.received = append(d.received, samples...)
	return len(samples), nil
}

func (d *fakeDevice) Recover() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recoverCalls++
	return nil
}

func (d *fakeDevice) Pause(bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauseCalls++
	return nil
}

func (d *fakeDevice) Drop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drops++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) setCapacity(n int) {
	d.mu.Lock()
	d.capacity = n
	d.mu.Unlock()
}

func (d *fakeDevice) receivedCopy() []int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int16(nil), d.received...)
}

func newTestEngine(t *testing.T, dev *fakeDevice) *Engine {
	t.Helper()
	e := New(dev, Config{PollInterval: time.Millisecond, Period: 50 * time.Millisecond})
	if err := e.Initialize(testFormat); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

// collector records completion results
type collector struct {
	mu      sync.Mutex
	results []CompletionResult
	fired   chan struct{}
}

func newCollector() *collector {
	return &collector{fired: make(chan struct{}, 100)}
}

func (c *collector) callback(r CompletionResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.fired <- struct{}{}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *collector) first() CompletionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[0]
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback did not fire")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSignalEOFFiresOnce(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	c := newCollector()
	e.SetCompletionCallback(c.callback)

	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	e.SignalEOF()
	e.SignalEOF()
	e.SignalEOF()

	c.wait(t)
	time.Sleep(50 * time.Millisecond)

	if n := c.count(); n != 1 {
		t.Errorf("expected exactly 1 completion, got %d", n)
	}
}

func TestNoCompletionWhileBuffered(t *testing.T) {
	dev := newFakeDevice()
	dev.setCapacity(0)
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	if err := e.WriteSamples(make([]int16, 1000)); err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	e.SignalEOF()

	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 {
		t.Fatal("completion fired while samples were still buffered")
	}
	if got := e.BufferedSamples(); got != 1000 {
		t.Fatalf("expected 1000 buffered samples, got %d", got)
	}

	dev.setCapacity(-1)
	c.wait(t)

	r := c.first()
	if r.Code != Success {
		t.Errorf("expected Success, got %v", r.Code)
	}
	if r.SamplesProcessed != 1000 {
		t.Errorf("expected 1000 samples processed, got %d", r.SamplesProcessed)
	}
	if r.SessionID != e.SessionID() {
		t.Errorf("result session %q does not match engine session %q", r.SessionID, e.SessionID())
	}
	if e.BufferedSamples() != 0 {
		t.Errorf("expected empty queue after completion, got %d", e.BufferedSamples())
	}
}

func TestSamplesProcessedMatchesWritten(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	total := 0
	for i := 0; i < 10; i++ {
		chunk := make([]int16, 4410)
		for j := range chunk {
			chunk[j] = int16(i*1000 + j%1000)
		}
		e.WriteSamples(chunk)
		total += len(chunk)
	}
	e.SignalEOF()
	c.wait(t)

	if got := c.first().SamplesProcessed; got != int64(total) {
		t.Errorf("expected %d samples processed, got %d", total, got)
	}

	received := dev.receivedCopy()
	if len(received) != total {
		t.Fatalf("device received %d samples, want %d", len(received), total)
	}
	// FIFO order is preserved across periods
	for i := 0; i < 10; i++ {
		if received[i*4410] != int16(i*1000) {
			t.Errorf("chunk %d out of order: first sample %d", i, received[i*4410])
		}
	}
}

func TestTrailingPartialFrameDoesNotBlockCompletion(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	// One sample short of a whole stereo frame at the end
	e.WriteSamples(make([]int16, 1001))
	e.SignalEOF()
	c.wait(t)

	r := c.first()
	if r.Code != Success {
		t.Errorf("expected success, got %s (%s)", r.Code, r.Message)
	}
	if r.SamplesProcessed != 1000 {
		t.Errorf("expected 1000 samples processed, got %d", r.SamplesProcessed)
	}
	if got := e.BufferedSamples(); got != 0 {
		t.Errorf("expected empty queue, got %d buffered", got)
	}
}

func TestPartialFrameJoinsNextWrite(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	e.WriteSamples(make([]int16, 3))
	e.WriteSamples(make([]int16, 1))
	e.SignalEOF()
	c.wait(t)

	if got := c.first().SamplesProcessed; got != 4 {
		t.Errorf("expected 4 samples processed, got %d", got)
	}
}

func TestImmediateCompletionOnEmptyQueue(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	e.SignalEOF()
	c.wait(t)

	r := c.first()
	if r.SamplesProcessed != 0 {
		t.Errorf("expected 0 samples processed, got %d", r.SamplesProcessed)
	}
	if !r.OK() {
		t.Errorf("expected success, got %v", r.Code)
	}
}

func TestConcurrentSignalEOF(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	e.WriteSamples(make([]int16, 2000))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			e.SignalEOF()
		}()
	}
	close(start)
	wg.Wait()

	c.wait(t)
	time.Sleep(50 * time.Millisecond)
	if n := c.count(); n != 1 {
		t.Errorf("expected exactly 1 completion from concurrent callers, got %d", n)
	}
}

func TestVolumeClamping(t *testing.T) {
	e := New(newFakeDevice(), DefaultConfig())

	tests := []struct {
		input    float64
		expected float64
	}{
		{1.2, 1.0},
		{-0.1, 0.0},
		{0.5, 0.5},
		{0.5, 0.5},
	}

	for _, tt := range tests {
		e.SetVolume(tt.input)
		if got := e.Volume(); got != tt.expected {
			t.Errorf("SetVolume(%v): expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestVolumeAppliedAtWrite(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.SetVolume(0.5)
	e.Start()

	e.WriteSamples([]int16{1000, -1000, 32767, -32768})
	e.SignalEOF()
	c.wait(t)

	want := []int16{500, -500, 16383, -16384}
	got := dev.receivedCopy()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestPanickingCallbackDoesNotBlockStop(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	var calls atomic.Int32
	e.SetCompletionCallback(func(CompletionResult) {
		calls.Add(1)
		panic("handler exploded")
	})
	e.Start()
	e.WriteSamples(make([]int16, 100))
	e.SignalEOF()

	waitFor(t, "panicking callback", func() bool { return calls.Load() == 1 })
	waitFor(t, "callback exception recorded", func() bool {
		return e.Stats().LastResult.Code == CallbackException
	})

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after a panicking callback")
	}

	// The engine remains usable for the next session
	if err := e.Start(); err != nil {
		t.Fatalf("Start after panic failed: %v", err)
	}
}

func TestHungCallbackDoesNotBlockStop(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	release := make(chan struct{})
	defer close(release)

	entered := make(chan struct{})
	e.SetCompletionCallback(func(CompletionResult) {
		close(entered)
		<-release
	})
	e.Start()
	e.SignalEOF()
	<-entered

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a hung callback")
	}
}

func TestUnderrunIsRecovered(t *testing.T) {
	dev := newFakeDevice()
	dev.underruns = 2

	var hooks atomic.Int32
	e := New(dev, Config{PollInterval: time.Millisecond, OnUnderrun: func() { hooks.Add(1) }})
	if err := e.Initialize(testFormat); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer e.Shutdown()

	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()
	e.WriteSamples(make([]int16, 500))
	e.SignalEOF()
	c.wait(t)

	r := c.first()
	if r.Code != Success || r.SamplesProcessed != 500 {
		t.Errorf("expected success with 500 samples, got %v with %d", r.Code, r.SamplesProcessed)
	}
	if got := e.Stats().Underruns; got != 2 {
		t.Errorf("expected 2 underruns, got %d", got)
	}
	if hooks.Load() != 2 {
		t.Errorf("expected underrun hook twice, got %d", hooks.Load())
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.recoverCalls != 2 {
		t.Errorf("expected 2 recover calls, got %d", dev.recoverCalls)
	}
}

func TestDeviceFailureStillCompletes(t *testing.T) {
	dev := newFakeDevice()
	dev.writeErr = errors.New("device unplugged")
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	e.WriteSamples(make([]int16, 1000))
	e.SignalEOF()
	c.wait(t)

	r := c.first()
	if r.Code != DeviceFailure {
		t.Errorf("expected DeviceFailure, got %v", r.Code)
	}
	if r.Message == "" {
		t.Error("expected an error message")
	}

	// Further writes are dropped so the session cannot wedge
	e.WriteSamples(make([]int16, 10))
	if e.BufferedSamples() != 0 {
		t.Errorf("expected writes to be dropped after device failure, got %d buffered", e.BufferedSamples())
	}
}

func TestStopDiscardsWithoutCompletion(t *testing.T) {
	dev := newFakeDevice()
	dev.setCapacity(0)
	e := newTestEngine(t, dev)
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()

	e.WriteSamples(make([]int16, 5000))
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if e.BufferedSamples() != 0 {
		t.Errorf("expected queue discarded on stop, got %d", e.BufferedSamples())
	}

	e.SignalEOF()
	time.Sleep(30 * time.Millisecond)
	if c.count() != 0 {
		t.Error("a stopped session must not report completion")
	}

	// Idempotent
	if err := e.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	if e.IsPlaying() {
		t.Error("engine should not be playing after Stop")
	}
}

func TestPauseHoldsQueue(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	e.Start()
	e.Pause()

	if e.IsPlaying() || !e.IsPaused() {
		t.Fatal("expected paused state")
	}

	e.WriteSamples(make([]int16, 800))
	time.Sleep(20 * time.Millisecond)
	if got := e.BufferedSamples(); got != 800 {
		t.Fatalf("paused engine drained the queue: %d left", got)
	}

	e.Resume()
	waitFor(t, "queue drain after resume", func() bool { return e.BufferedSamples() == 0 })

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.pauseCalls != 2 {
		t.Errorf("expected device pause and resume, got %d calls", dev.pauseCalls)
	}
}

func TestStartRequiresInitialize(t *testing.T) {
	e := New(newFakeDevice(), DefaultConfig())

	err := e.Start()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := e.WriteSamples([]int16{1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from WriteSamples, got %v", err)
	}
}

func TestInitializeDeviceFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.openErr = errors.New("no such card")
	e := New(dev, DefaultConfig())

	err := e.Initialize(testFormat)
	if CodeOf(err) != DeviceFailure {
		t.Errorf("expected DeviceFailure, got %v", err)
	}
}

func TestInitializeFormatChangeRequiresShutdown(t *testing.T) {
	dev := newFakeDevice()
	e := New(dev, DefaultConfig())

	if err := e.Initialize(testFormat); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := e.Initialize(testFormat); err != nil {
		t.Errorf("re-initializing with the same format should succeed, got %v", err)
	}

	other := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if err := e.Initialize(other); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := e.Initialize(other); err != nil {
		t.Errorf("Initialize after Shutdown failed: %v", err)
	}
	if got := e.PeriodSamples(); got != 4800 {
		t.Errorf("expected 4800-sample period at 48kHz stereo, got %d", got)
	}
	e.Shutdown()

	if !dev.closed {
		t.Error("Shutdown should close the device")
	}
}

func TestNewSessionResetsState(t *testing.T) {
	e := newTestEngine(t, newFakeDevice())
	c := newCollector()
	e.SetCompletionCallback(c.callback)
	e.Start()
	first := e.SessionID()
	e.SignalEOF()
	c.wait(t)

	e.Start()
	if e.SessionID() == first {
		t.Error("Start should create a new session")
	}
	st := e.Stats()
	if st.EOF || st.Completed || st.Processed != 0 {
		t.Errorf("new session should start clean, got %+v", st)
	}

	e.SignalEOF()
	c.wait(t)
	if c.count() != 2 {
		t.Errorf("expected one completion per session, got %d", c.count())
	}
}

// ABOUTME: Null audio output that consumes samples in real time
// ABOUTME: Used for headless runs and tests where no sound card exists
package output

import (
	"sync"
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
)

// Null discards audio at the format's real-time rate
type Null struct {
	cfg      Config
	mu       sync.Mutex
	format   audio.Format
	capacity int
	queued   int
	last     time.Time
	paused   bool
	open     bool
	written  int64
	now      func() time.Time
}

// NewNull creates a null output with a buffer of cfg.BufferMs
func NewNull(cfg Config) *Null {
	return &Null{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// Name identifies the backend
func (n *Null) Name() string { return "null" }

// Open sizes the simulated hardware buffer
func (n *Null) Open(format audio.Format) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.format = format
	n.capacity = format.SamplesFor(time.Duration(n.cfg.BufferMs) * time.Millisecond)
	n.queued = 0
	n.last = n.now()
	n.paused = false
	n.open = true
	return nil
}

// drain advances the simulated playhead (must hold n.mu)
func (n *Null) drain() {
	now := n.now()
	if n.paused || n.queued == 0 {
		n.last = now
		return
	}

	consumed := n.format.SamplesFor(now.Sub(n.last))
	if consumed == 0 {
		return
	}
	if consumed >= n.queued {
		n.queued = 0
		n.last = now
		return
	}
	n.queued -= consumed
	n.last = n.last.Add(n.format.DurationOf(consumed))
}

// Available returns free space in the simulated buffer
func (n *Null) Available() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.open {
		return 0, ErrNotOpen
	}
	n.drain()
	return n.capacity - n.queued, nil
}

// Write accepts whole frames up to the free space
func (n *Null) Write(samples []int16) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.open {
		return 0, ErrNotOpen
	}
	n.drain()

	accept := len(samples)
	if free := n.capacity - n.queued; accept > free {
		accept = free
	}
	accept -= accept % n.format.Channels
	if n.queued == 0 {
		n.last = n.now()
	}
	n.queued += accept
	n.written += int64(accept)
	return accept, nil
}

// Recover is a no-op; the null device never underruns
func (n *Null) Recover() error { return nil }

// Pause freezes the simulated playhead
func (n *Null) Pause(paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drain()
	n.paused = paused
	return nil
}

// Drop discards queued audio
func (n *Null) Drop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued = 0
	n.last = n.now()
	return nil
}

// Close marks the device closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	n.queued = 0
	return nil
}

// Written returns the total samples accepted since creation
func (n *Null) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

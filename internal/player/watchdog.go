// ABOUTME: Completion watchdog
// ABOUTME: Forces track advancement when no completion arrives within the grace period
package player

import (
	"sync"
	"time"
)

// watchdog runs fire at most once, timeout after Arm, unless stopped first.
// Pausing holds the countdown; Resume restarts the full grace period.
type watchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	fire    func()
	timer   *time.Timer
	armed   bool
	paused  bool
	done    bool
}

func newWatchdog(timeout time.Duration, fire func()) *watchdog {
	return &watchdog{timeout: timeout, fire: fire}
}

// Arm starts the countdown; later calls are ignored
func (w *watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.armed || w.done {
		return
	}
	w.armed = true
	if !w.paused {
		w.startLocked()
	}
}

func (w *watchdog) startLocked() {
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

func (w *watchdog) expire() {
	w.mu.Lock()
	if w.done || w.paused {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.mu.Unlock()

	w.fire()
}

// Pause holds the countdown
func (w *watchdog) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paused {
		return
	}
	w.paused = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Resume restarts the countdown if armed
func (w *watchdog) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.paused {
		return
	}
	w.paused = false
	if w.armed && !w.done {
		w.startLocked()
	}
}

// Stop disarms the watchdog for good
func (w *watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.done = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Armed reports whether the countdown was started
func (w *watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// ABOUTME: Tests for the pause-aware stopwatch
// ABOUTME: Uses a fake clock so results are exact
package player

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStopwatchExcludesPausedTime(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	sw := newStopwatch(clk.now)

	clk.advance(2 * time.Second)
	if got := sw.Elapsed(); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}

	sw.Pause()
	clk.advance(5 * time.Second)
	if got := sw.Elapsed(); got != 2*time.Second {
		t.Errorf("elapsed moved while paused: %v", got)
	}
	if !sw.Paused() {
		t.Error("expected paused")
	}

	// Repeated pause does not reset the pause start
	sw.Pause()
	clk.advance(time.Second)

	sw.Resume()
	clk.advance(time.Second)
	if got := sw.Elapsed(); got != 3*time.Second {
		t.Errorf("expected 3s after resume, got %v", got)
	}

	sw.Resume()
	if got := sw.Elapsed(); got != 3*time.Second {
		t.Errorf("extra resume changed elapsed: %v", got)
	}
}

// ABOUTME: Tests for the completion watchdog
// ABOUTME: Covers firing, cancellation and pause handling
package player

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdogFiresOnce(t *testing.T) {
	var fired atomic.Int32
	w := newWatchdog(20*time.Millisecond, func() { fired.Add(1) })

	w.Arm()
	w.Arm()
	time.Sleep(100 * time.Millisecond)

	if fired.Load() != 1 {
		t.Errorf("expected 1 firing, got %d", fired.Load())
	}
	if !w.Armed() {
		t.Error("expected armed")
	}
}

func TestWatchdogStopBeforeExpiry(t *testing.T) {
	var fired atomic.Int32
	w := newWatchdog(30*time.Millisecond, func() { fired.Add(1) })

	w.Arm()
	w.Stop()
	time.Sleep(80 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("stopped watchdog fired")
	}

	w.Arm()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("watchdog re-armed after Stop")
	}
}

func TestWatchdogNotArmed(t *testing.T) {
	var fired atomic.Int32
	w := newWatchdog(10*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)

	if fired.Load() != 0 || w.Armed() {
		t.Error("unarmed watchdog must not fire")
	}
}

func TestWatchdogPauseHoldsCountdown(t *testing.T) {
	var fired atomic.Int32
	w := newWatchdog(40*time.Millisecond, func() { fired.Add(1) })

	w.Arm()
	w.Pause()
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("paused watchdog fired")
	}

	w.Resume()
	time.Sleep(120 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expected firing after resume, got %d", fired.Load())
	}
}

func TestWatchdogArmWhilePaused(t *testing.T) {
	var fired atomic.Int32
	w := newWatchdog(20*time.Millisecond, func() { fired.Add(1) })

	w.Pause()
	w.Arm()
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("watchdog armed while paused should wait for resume")
	}

	w.Resume()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("expected 1 firing, got %d", fired.Load())
	}
}

// ABOUTME: Pause-aware stopwatch used for duration pacing
// ABOUTME: Elapsed time excludes intervals spent paused
package player

import (
	"sync"
	"time"
)

type stopwatch struct {
	mu       sync.Mutex
	now      func() time.Time
	started  time.Time
	pausedAt time.Time
	idle     time.Duration
	paused   bool
}

func newStopwatch(now func() time.Time) *stopwatch {
	if now == nil {
		now = time.Now
	}
	return &stopwatch{now: now, started: now()}
}

// Elapsed returns running time since start
func (s *stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	if s.paused {
		end = s.pausedAt
	}
	return end.Sub(s.started) - s.idle
}

func (s *stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	s.pausedAt = s.now()
}

func (s *stopwatch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	s.idle += s.now().Sub(s.pausedAt)
}

func (s *stopwatch) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

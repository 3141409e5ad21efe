// ABOUTME: Completion detector for a playback session
// ABOUTME: Fires exactly once when end-of-stream is signaled and the queue is empty
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// session is the per-Start playback state
type session struct {
	id        string
	started   time.Time
	eof       atomic.Bool
	fired     atomic.Bool
	stopped   atomic.Bool
	processed atomic.Int64

	mu        sync.Mutex
	code      ErrorCode
	message   string
	devFailed bool
}

func newSession() *session {
	return &session{
		id:      uuid.NewString(),
		started: time.Now(),
	}
}

// fail records the first abnormal termination reason
func (s *session) fail(code ErrorCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == DeviceFailure {
		s.devFailed = true
	}
	if s.code != Success {
		return
	}
	s.code = code
	s.message = message
}

func (s *session) deviceFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devFailed
}

func (s *session) result(now time.Time) CompletionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return CompletionResult{
		Code:             s.code,
		Message:          s.message,
		CompletionTime:   now.Sub(s.started),
		SamplesProcessed: s.processed.Load(),
		SessionID:        s.id,
	}
}

// evaluate fires the completion callback if EOF was signaled and the queue is drained.
// Safe to call concurrently; the fired latch admits a single winner.
func (e *Engine) evaluate(s *session) {
	if s == nil || !s.eof.Load() || s.fired.Load() || s.stopped.Load() {
		return
	}

	won := false
	e.queue.WhenEmpty(func() {
		if !s.stopped.Load() {
			won = s.fired.CompareAndSwap(false, true)
		}
	})
	if !won {
		return
	}

	result := s.result(time.Now())
	e.resultMu.Lock()
	e.lastResult = result
	e.resultMu.Unlock()

	e.cbMu.Lock()
	cb := e.callback
	e.cbMu.Unlock()

	log.Debug("Playback session complete", "session", result.SessionID, "code", result.Code,
		"samples", result.SamplesProcessed, "elapsed", result.CompletionTime)

	if cb == nil {
		return
	}

	// Off the writer goroutine so a slow or panicking handler cannot stall Stop
	go e.deliver(cb, result)
}

// deliver invokes cb and swallows any panic it raises
func (e *Engine) deliver(cb func(CompletionResult), result CompletionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Completion callback panicked (session %s): %v", result.SessionID, r)
			e.resultMu.Lock()
			if e.lastResult.SessionID == result.SessionID {
				e.lastResult.Code = CallbackException
				e.lastResult.Message = fmt.Sprint(r)
			}
			e.resultMu.Unlock()
		}
	}()

	cb(result)
}

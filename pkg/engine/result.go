// ABOUTME: Completion result and error taxonomy
// ABOUTME: ErrorCode values, CompletionResult and the engine error type
package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies how a playback session ended
type ErrorCode int

const (
	Success ErrorCode = iota
	CallbackException
	BufferUnderrun
	ThreadingError
	DeviceFailure
	CallbackTimeout
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case CallbackException:
		return "callback_exception"
	case BufferUnderrun:
		return "buffer_underrun"
	case ThreadingError:
		return "threading_error"
	case DeviceFailure:
		return "device_failure"
	case CallbackTimeout:
		return "callback_timeout"
	default:
		return fmt.Sprintf("error_code(%d)", int(c))
	}
}

// CompletionResult is delivered once per session when playback finished
type CompletionResult struct {
	Code             ErrorCode
	Message          string
	CompletionTime   time.Duration // since session start
	SamplesProcessed int64
	SessionID        string
}

// OK reports whether the session completed without error
func (r CompletionResult) OK() bool {
	return r.Code == Success
}

var (
	// ErrNotInitialized is returned when the device has not been opened
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrAlreadyInitialized is returned when re-initializing with a different format before Shutdown
	ErrAlreadyInitialized = errors.New("engine already initialized")
)

// Error carries an ErrorCode alongside the underlying cause
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, or Success for nil
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return DeviceFailure
}

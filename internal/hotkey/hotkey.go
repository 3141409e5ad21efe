// ABOUTME: Hotkey actions and the handler that dispatches them
// ABOUTME: Maps terminal keys and stdin command lines to player actions
package hotkey

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Action is a user command
type Action int

const (
	NextTrack Action = iota
	PreviousTrack
	PauseResume
	VolumeUp
	VolumeDown
	Quit
)

func (a Action) String() string {
	switch a {
	case NextTrack:
		return "next"
	case PreviousTrack:
		return "previous"
	case PauseResume:
		return "pause/resume"
	case VolumeUp:
		return "volume up"
	case VolumeDown:
		return "volume down"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Handler delivers actions to a single registered callback.
// The orchestrator owns it and tears it down with Close.
type Handler struct {
	mu     sync.Mutex
	cb     func(Action)
	closed bool
}

// NewHandler creates a handler with no callback
func NewHandler() *Handler {
	return &Handler{}
}

// SetCallback registers fn; nil clears it
func (h *Handler) SetCallback(fn func(Action)) {
	h.mu.Lock()
	h.cb = fn
	h.mu.Unlock()
}

// Dispatch invokes the callback with a. It reports whether anything received it.
func (h *Handler) Dispatch(a Action) bool {
	h.mu.Lock()
	cb := h.cb
	closed := h.closed
	h.mu.Unlock()

	if closed || cb == nil {
		return false
	}
	cb(a)
	return true
}

// Close drops the callback and ignores further dispatches
func (h *Handler) Close() {
	h.mu.Lock()
	h.cb = nil
	h.closed = true
	h.mu.Unlock()
}

// keyActions covers bubbletea key names and single characters
var keyActions = map[string]Action{
	"n":      NextTrack,
	"N":      NextTrack,
	"right":  NextTrack,
	"p":      PreviousTrack,
	"P":      PreviousTrack,
	"left":   PreviousTrack,
	"r":      PauseResume,
	"R":      PauseResume,
	" ":      PauseResume,
	"space":  PauseResume,
	"+":      VolumeUp,
	"=":      VolumeUp,
	"up":     VolumeUp,
	"-":      VolumeDown,
	"_":      VolumeDown,
	"down":   VolumeDown,
	"q":      Quit,
	"Q":      Quit,
	"esc":    Quit,
	"ctrl+c": Quit,
}

// ForKey returns the action bound to key
func ForKey(key string) (Action, bool) {
	a, ok := keyActions[key]
	return a, ok
}

// ForLine maps a typed command line ("n", "next", "+", ...) to an action
func ForLine(line string) (Action, bool) {
	trimmed := strings.TrimSpace(line)
	switch strings.ToLower(trimmed) {
	case "next":
		return NextTrack, true
	case "prev", "previous", "back":
		return PreviousTrack, true
	case "pause", "resume":
		return PauseResume, true
	case "vol+", "louder":
		return VolumeUp, true
	case "vol-", "quieter":
		return VolumeDown, true
	case "quit", "exit":
		return Quit, true
	}
	// An empty line is the space bar for terminals that need Enter
	if trimmed == "" && line != "" && strings.Contains(line, " ") {
		return PauseResume, true
	}
	return ForKey(trimmed)
}

// ReadLines dispatches one action per recognized line of r until EOF,
// a Quit action or ctx cancellation.
func (h *Handler) ReadLines(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line := <-lines:
			a, ok := ForLine(line)
			if !ok {
				continue
			}
			h.Dispatch(a)
			if a == Quit {
				return nil
			}
		}
	}
}

// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the player UI
package ui

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nigamp/nigamp/internal/hotkey"
)

// NewModel creates a new TUI model; keys are dispatched through h
func NewModel(h *hotkey.Handler) Model {
	return Model{
		volume:  100,
		hotkeys: h,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Run creates the TUI program
func Run(h *hotkey.Handler) *tea.Program {
	return tea.NewProgram(NewModel(h), tea.WithAltScreen())
}

// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Renders now-playing, countdown and volume; keys become hotkey actions
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nigamp/nigamp/internal/hotkey"
	"github.com/nigamp/nigamp/internal/version"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Track
	title    string
	artist   string
	album    string
	path     string
	position int
	total    int

	// Format
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Playback
	duration time.Duration
	limit    time.Duration
	elapsed  time.Duration
	playing  bool
	paused   bool
	volume   int
	preview  bool

	// Engine
	backend    string
	bufferMs   int
	underruns  int64
	lastResult string
	sessionID  string

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64

	hotkeys *hotkey.Handler
	bar     progress.Model

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-24, 10)
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTrack())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")
	b.WriteString(m.renderControls())

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders the product line and playlist position
func (m Model) renderHeader() string {
	s := titleStyle.Render(version.String())
	if m.total > 0 {
		s += valueStyle.Render(fmt.Sprintf("  [%d/%d]", m.position, m.total))
	}
	if m.preview {
		s += pausedStyle.Render("  PREVIEW")
	}
	return s
}

// renderTrack renders the current song and its format
func (m Model) renderTrack() string {
	if m.title == "" {
		return valueStyle.Render("Nothing playing") + "\n"
	}

	width := max(m.width-10, 20)
	s := labelStyle.Render("Track:  ") + valueStyle.Render(truncate(m.title, width)) + "\n"
	s += labelStyle.Render("Artist: ") + valueStyle.Render(truncate(m.artist, width)) + "\n"
	if m.album != "" {
		s += labelStyle.Render("Album:  ") + valueStyle.Render(truncate(m.album, width)) + "\n"
	}
	if m.sampleRate > 0 {
		s += labelStyle.Render("Format: ") + valueStyle.Render(fmt.Sprintf("%s %dHz %s %d-bit",
			m.codec, m.sampleRate, channelName(m.channels), m.bitDepth)) + "\n"
	}
	return s
}

// renderProgress renders the countdown bar
func (m Model) renderProgress() string {
	end := m.limit
	if end == 0 {
		end = m.duration
	}

	percent := 0.0
	if end > 0 {
		percent = min(float64(m.elapsed)/float64(end), 1)
	}

	remaining := max(end-m.elapsed, 0)
	s := m.bar.ViewAs(percent) + " " +
		valueStyle.Render(fmt.Sprintf("%s / %s  -%s", formatClock(m.elapsed), formatClock(end), formatClock(remaining)))

	if m.paused {
		s += " " + pausedStyle.Render("PAUSED")
	}
	return s
}

// renderControls renders volume and engine status
func (m Model) renderControls() string {
	s := labelStyle.Render("Volume: ") + valueStyle.Render(fmt.Sprintf("[%s] %d%%", renderBar(m.volume, 100, 10), m.volume)) + "\n"

	last := m.lastResult
	if last == "" {
		last = "-"
	} else if last != "success" {
		last = errorStyle.Render(last)
	}
	s += labelStyle.Render("Output: ") + valueStyle.Render(fmt.Sprintf("%s  buffer %dms  underruns %d  last ",
		m.backend, m.bufferMs, m.underruns)) + last
	return s
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return helpStyle.Render(fmt.Sprintf("session %s  goroutines %d  heap %.1fMB\nfile %s",
		m.sessionID, m.goroutines, float64(m.memAlloc)/(1024*1024), m.path))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return helpStyle.Render("n:Next  p:Prev  r/space:Pause  +/-:Volume  d:Debug  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "d" {
		m.showDebug = !m.showDebug
		return m, nil
	}

	action, ok := hotkey.ForKey(key)
	if !ok {
		return m, nil
	}

	if action == hotkey.PauseResume {
		m.paused = !m.paused
	}

	// Navigation blocks on track teardown, so it runs off the UI goroutine
	dispatch := m.dispatch(action)
	if action == hotkey.Quit {
		return m, tea.Sequence(dispatch, tea.Quit)
	}
	return m, dispatch
}

func (m Model) dispatch(a hotkey.Action) tea.Cmd {
	h := m.hotkeys
	return func() tea.Msg {
		if h != nil {
			h.Dispatch(a)
		}
		return nil
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.title = msg.Title
	m.artist = msg.Artist
	m.album = msg.Album
	m.path = msg.Path
	m.position = msg.Position
	m.total = msg.Total

	m.codec = msg.Codec
	m.sampleRate = msg.SampleRate
	m.channels = msg.Channels
	m.bitDepth = msg.BitDepth

	m.duration = msg.Duration
	m.limit = msg.Limit
	m.elapsed = msg.Elapsed
	m.playing = msg.Playing
	m.paused = msg.Paused
	m.volume = msg.Volume
	m.preview = msg.Preview

	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	m.bufferMs = msg.BufferMs
	m.underruns = msg.Underruns
	m.lastResult = msg.LastResult
	m.sessionID = msg.SessionID

	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Title      string
	Artist     string
	Album      string
	Path       string
	Position   int
	Total      int
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	Limit      time.Duration
	Elapsed    time.Duration
	Playing    bool
	Paused     bool
	Volume     int
	Preview    bool
	Backend    string
	BufferMs   int
	Underruns  int64
	LastResult string
	SessionID  string
	Goroutines int
	MemAlloc   uint64
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := min((value*width)/max, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

// formatClock renders d as m:ss
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

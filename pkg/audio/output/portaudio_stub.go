//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides a placeholder backend when built without the portaudio tag
package output

import (
	"fmt"

	"github.com/nigamp/nigamp/pkg/audio"
)

func init() {
	register("portaudio", func(cfg Config) Device { return &PortAudio{} })
}

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(Config) *PortAudio {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Open reports that PortAudio was not compiled in
func (p *PortAudio) Open(audio.Format) error {
	return fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrUnavailable)
}

func (p *PortAudio) Available() (int, error)    { return 0, ErrNotOpen }
func (p *PortAudio) Write([]int16) (int, error) { return 0, ErrNotOpen }
func (p *PortAudio) Recover() error             { return ErrNotOpen }
func (p *PortAudio) Pause(bool) error           { return ErrNotOpen }
func (p *PortAudio) Drop() error                { return nil }
func (p *PortAudio) Close() error               { return nil }

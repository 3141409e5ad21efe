//go:build !linux

// ABOUTME: ALSA stub for non-Linux platforms
// ABOUTME: Registers a placeholder so the backend name resolves with a clear error
package output

import (
	"fmt"

	"github.com/nigamp/nigamp/pkg/audio"
)

func init() {
	register("alsa", func(cfg Config) Device { return &alsaStub{} })
}

type alsaStub struct{}

func (alsaStub) Name() string { return "alsa" }

func (alsaStub) Open(audio.Format) error {
	return fmt.Errorf("%w: ALSA is only available on Linux", ErrUnavailable)
}

func (alsaStub) Available() (int, error)    { return 0, ErrNotOpen }
func (alsaStub) Write([]int16) (int, error) { return 0, ErrNotOpen }
func (alsaStub) Recover() error             { return ErrNotOpen }
func (alsaStub) Pause(bool) error           { return ErrNotOpen }
func (alsaStub) Drop() error                { return nil }
func (alsaStub) Close() error               { return nil }

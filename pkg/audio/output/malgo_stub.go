//go:build !cgo

// ABOUTME: Malgo stub when cgo is disabled
// ABOUTME: Registers a placeholder so the backend name resolves with a clear error
package output

import (
	"fmt"

	"github.com/nigamp/nigamp/pkg/audio"
)

func init() {
	register("malgo", func(cfg Config) Device { return &malgoStub{} })
}

type malgoStub struct{}

func (malgoStub) Name() string { return "malgo" }

func (malgoStub) Open(audio.Format) error {
	return fmt.Errorf("%w: malgo support requires cgo", ErrUnavailable)
}

func (malgoStub) Available() (int, error)    { return 0, ErrNotOpen }
func (malgoStub) Write([]int16) (int, error) { return 0, ErrNotOpen }
func (malgoStub) Recover() error             { return ErrNotOpen }
func (malgoStub) Pause(bool) error           { return ErrNotOpen }
func (malgoStub) Drop() error                { return nil }
func (malgoStub) Close() error               { return nil }

//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform blocking stream driven by AvailableToWrite
package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/nigamp/nigamp/pkg/audio"
)

func init() {
	register("portaudio", func(cfg Config) Device { return NewPortAudio(cfg) })
}

// PortAudio output implementation
type PortAudio struct {
	cfg       Config
	mu        sync.Mutex
	stream    *portaudio.Stream
	format    audio.Format
	buffer    []int16
	underflow bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(cfg Config) *PortAudio {
	return &PortAudio{cfg: cfg.withDefaults()}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Open initializes PortAudio and a blocking output stream
func (p *PortAudio) Open(format audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		if p.format.SameStream(format) {
			return nil
		}
		p.closeStream()
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	// A pointer to the slice lets Write vary the frame count per call
	framesPerBuffer := format.SampleRate * p.cfg.PeriodMs / 1000
	p.buffer = make([]int16, 0, framesPerBuffer*format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer, &p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.format = format
	p.underflow = false

	log.Infof("Audio output initialized: %s (portaudio)", format)
	return nil
}

// Available reports writable frames as samples
func (p *PortAudio) Available() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return 0, ErrNotOpen
	}
	if p.underflow {
		p.underflow = false
		return 0, ErrUnderrun
	}
	frames, err := p.stream.AvailableToWrite()
	if err != nil {
		return 0, fmt.Errorf("portaudio available query failed: %w", err)
	}
	return frames * p.format.Channels, nil
}

// Write copies samples into the stream buffer and writes them
func (p *PortAudio) Write(samples []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return 0, ErrNotOpen
	}
	n := len(samples) - len(samples)%p.format.Channels
	if n == 0 {
		return 0, nil
	}
	p.buffer = append(p.buffer[:0], samples[:n]...)

	if err := p.stream.Write(); err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			// The data was still written; report the gap on the next poll
			p.underflow = true
			return n, nil
		}
		return 0, fmt.Errorf("portaudio write failed: %w", err)
	}
	return n, nil
}

// Recover is a no-op; PortAudio keeps the stream running after underflow
func (p *PortAudio) Recover() error { return nil }

// Pause stops or restarts the stream
func (p *PortAudio) Pause(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}
	if paused {
		return p.stream.Stop()
	}
	return p.stream.Start()
}

// Drop aborts pending output and restarts the stream
func (p *PortAudio) Drop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Abort(); err != nil {
		log.Warnf("portaudio abort: %v", err)
	}
	return p.stream.Start()
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeStream()
}

// closeStream stops the stream and terminates PortAudio (must hold p.mu)
func (p *PortAudio) closeStream() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		log.Warnf("portaudio stop: %v", err)
	}
	if err := p.stream.Close(); err != nil {
		log.Warnf("portaudio close: %v", err)
	}
	p.stream = nil
	return portaudio.Terminate()
}

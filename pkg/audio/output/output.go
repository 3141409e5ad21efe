// ABOUTME: Audio output device interface definition
// ABOUTME: Capability set the playback engine drives, plus the backend registry
package output

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nigamp/nigamp/pkg/audio"
)

var (
	// ErrUnderrun reports that the device ran out of queued audio
	ErrUnderrun = errors.New("device underrun")

	// ErrNotOpen is returned when a device is used before Open
	ErrNotOpen = errors.New("output not initialized")

	// ErrFormatLocked is returned by devices that cannot change format once opened
	ErrFormatLocked = errors.New("output format locked")

	// ErrUnavailable is returned for backends not compiled into this binary
	ErrUnavailable = errors.New("output backend unavailable")
)

// Device is a PCM sink driven by a polling writer.
// Sample counts are interleaved int16 samples, always whole frames.
type Device interface {
	// Open configures the device for format
	Open(format audio.Format) error

	// Available returns how many samples the device accepts without blocking.
	// It returns ErrUnderrun when the device has run dry and needs Recover.
	Available() (int, error)

	// Write hands samples to the device and returns how many were accepted
	Write(samples []int16) (int, error)

	// Recover re-arms the device after an underrun
	Recover() error

	// Pause halts or resumes hardware consumption
	Pause(paused bool) error

	// Drop discards audio queued in the device
	Drop() error

	// Close releases the device
	Close() error

	// Name identifies the backend in logs
	Name() string
}

// FormatLocker is implemented by devices that keep their first format for the process lifetime
type FormatLocker interface {
	LockedFormat() (audio.Format, bool)
}

// Config carries backend-independent device tuning
type Config struct {
	// Device is a backend specific address, e.g. "hw:0,0" for ALSA
	Device   string
	BufferMs int
	PeriodMs int
}

// DefaultConfig mirrors a 2s hardware buffer split into 50ms periods
func DefaultConfig() Config {
	return Config{
		Device:   "hw:0,0",
		BufferMs: 2000,
		PeriodMs: 50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Device == "" {
		c.Device = d.Device
	}
	if c.BufferMs <= 0 {
		c.BufferMs = d.BufferMs
	}
	if c.PeriodMs <= 0 {
		c.PeriodMs = d.PeriodMs
	}
	if c.PeriodMs > c.BufferMs {
		c.PeriodMs = c.BufferMs
	}
	return c
}

// DefaultBackend is the backend used when none is configured
var DefaultBackend = "oto"

// Factory builds a device from configuration
type Factory func(cfg Config) Device

var backends = map[string]Factory{
	"null": func(cfg Config) Device { return NewNull(cfg) },
	"oto":  func(cfg Config) Device { return NewOto(cfg) },
}

// register adds a platform specific backend; called from init functions
func register(name string, f Factory) {
	backends[name] = f
}

// Backends lists the registered backend names
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the named backend
func New(name string, cfg Config) (Device, error) {
	f, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnavailable, name, strings.Join(Backends(), ", "))
	}
	return f(cfg.withDefaults()), nil
}

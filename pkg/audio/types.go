// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM format and sample math shared by decoders, engine and devices
package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxInt16 and MinInt16 bound a 16-bit signed sample
	MaxInt16 = math.MaxInt16
	MinInt16 = math.MinInt16
)

// Format describes an interleaved PCM stream
type Format struct {
	Codec      string // Source container ("mp3", "wav", "flac", "tone")
	SampleRate int
	Channels   int
	BitDepth   int
}

// String renders the format for logs and the TUI
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Valid reports whether the format can be opened on a device
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitDepth > 0
}

// SamplesPerSecond returns the number of interleaved samples in one second
func (f Format) SamplesPerSecond() int {
	return f.SampleRate * f.Channels
}

// SamplesFor converts a wall-clock duration into whole frames worth of samples
func (f Format) SamplesFor(d time.Duration) int {
	if !f.Valid() || d <= 0 {
		return 0
	}
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.Channels
}

// DurationOf converts an interleaved sample count into playback time
func (f Format) DurationOf(samples int) time.Duration {
	if !f.Valid() || samples <= 0 {
		return 0
	}
	frames := int64(samples / f.Channels)
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

// SameStream reports whether two formats describe the same device configuration
func (f Format) SameStream(other Format) bool {
	return f.SampleRate == other.SampleRate && f.Channels == other.Channels && f.BitDepth == other.BitDepth
}

// ClampVolume limits a volume multiplier to [0.0, 1.0]
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScaleSample multiplies a sample by gain and saturates to the int16 range
func ScaleSample(sample int16, gain float64) int16 {
	return ClampInt16(float64(sample) * gain)
}

// ClampInt16 rounds toward zero and saturates to the int16 range
func ClampInt16(v float64) int16 {
	if v >= MaxInt16 {
		return MaxInt16
	}
	if v <= MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// Int16FromFloat converts a [-1, 1] float sample to int16
func Int16FromFloat(v float64) int16 {
	return ClampInt16(v * MaxInt16)
}

// Int16FromInt32 reduces a sample of the given bit depth to 16 bits
func Int16FromInt32(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(sample >> uint(bitDepth-16))
	case bitDepth < 16 && bitDepth > 0:
		return int16(sample << uint(16-bitDepth))
	default:
		return int16(sample)
	}
}

// ApplyVolume scales samples in place
func ApplyVolume(samples []int16, gain float64) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		samples[i] = ScaleSample(s, gain)
	}
}

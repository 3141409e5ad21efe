// ABOUTME: Tests for audio types
// ABOUTME: Tests format math, volume scaling and sample conversion
package audio

import (
	"math"
	"testing"
	"time"
)

func TestInt16FromInt32(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		bitDepth int
		expected int16
	}{
		{"zero", 0, 24, 0},
		{"16bit passthrough", -1234, 16, -1234},
		{"24bit positive", 1000000, 24, 3906},
		{"24bit negative", -1000000, 24, -3907},
		{"32bit max", math.MaxInt32, 32, 32767},
		{"8bit widened", 100, 8, 100 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Int16FromInt32(tt.input, tt.bitDepth)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestClampVolume(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"in range", 0.5, 0.5},
		{"above one", 1.2, 1.0},
		{"below zero", -0.1, 0.0},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampVolume(tt.input); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestScaleSampleSaturates(t *testing.T) {
	if got := ScaleSample(30000, 2.0); got != MaxInt16 {
		t.Errorf("expected saturation to %d, got %d", MaxInt16, got)
	}
	if got := ScaleSample(-30000, 2.0); got != MinInt16 {
		t.Errorf("expected saturation to %d, got %d", MinInt16, got)
	}
	if got := ScaleSample(1000, 0.5); got != 500 {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestApplyVolume(t *testing.T) {
	samples := []int16{1000, -1000, 0, 32767}
	ApplyVolume(samples, 0.0)
	for i, s := range samples {
		if s != 0 {
			t.Errorf("sample %d: expected silence, got %d", i, s)
		}
	}

	samples = []int16{1000, -1000}
	ApplyVolume(samples, 1.0)
	if samples[0] != 1000 || samples[1] != -1000 {
		t.Errorf("unity gain changed samples: %v", samples)
	}
}

func TestFormatDurationMath(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

	if got := f.SamplesFor(time.Second); got != 88200 {
		t.Errorf("SamplesFor(1s) = %d, want 88200", got)
	}
	if got := f.SamplesFor(50 * time.Millisecond); got != 4410 {
		t.Errorf("SamplesFor(50ms) = %d, want 4410", got)
	}
	if got := f.DurationOf(88200); got != time.Second {
		t.Errorf("DurationOf(88200) = %v, want 1s", got)
	}
	if got := (Format{}).SamplesFor(time.Second); got != 0 {
		t.Errorf("invalid format should yield 0 samples, got %d", got)
	}
}

func TestFormatSameStream(t *testing.T) {
	a := Format{Codec: "mp3", SampleRate: 44100, Channels: 2, BitDepth: 16}
	b := Format{Codec: "wav", SampleRate: 44100, Channels: 2, BitDepth: 16}
	if !a.SameStream(b) {
		t.Error("codec should not affect device compatibility")
	}
	b.SampleRate = 48000
	if a.SameStream(b) {
		t.Error("different sample rates should not match")
	}
}

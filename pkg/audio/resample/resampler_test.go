// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation resampling between sample rates
package resample

import (
	"testing"
)

func TestNew(t *testing.T) {
	r := New(44100, 48000, 2)

	if r.inputRate != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.inputRate)
	}
	if r.outputRate != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.outputRate)
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestResampleIdentity(t *testing.T) {
	r := New(48000, 48000, 1)

	input := []int16{10, 20, 30, 40}
	out := r.Resample(input)

	// The final frame is carried into the next chunk
	want := []int16{10, 20, 30}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], out[i])
		}
	}

	// Next chunk starts at the carried frame
	out = r.Resample([]int16{50, 60})
	if len(out) != 2 || out[0] != 40 || out[1] != 50 {
		t.Errorf("expected [40 50], got %v", out)
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(24000, 48000, 1)

	out := r.Resample([]int16{0, 100, 200})
	want := []int16{0, 50, 100, 150}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d (%v)", len(want), len(out), out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestResampleDownsamplingStereo(t *testing.T) {
	r := New(48000, 24000, 2)

	input := make([]int16, 200)
	for i := range input {
		input[i] = int16(i)
	}

	total := 0
	for i := 0; i < 4; i++ {
		total += len(r.Resample(input))
	}

	// 400 input frames at half rate
	if total < 190*2 || total > 210*2 {
		t.Errorf("expected about 400 output samples, got %d", total)
	}
	if total%2 != 0 {
		t.Errorf("output must stay frame aligned, got %d samples", total)
	}
}

func TestResampleEmpty(t *testing.T) {
	r := New(44100, 48000, 2)
	if out := r.Resample(nil); out != nil {
		t.Errorf("expected nil for empty input, got %v", out)
	}
}

func TestReset(t *testing.T) {
	r := New(44100, 48000, 2)
	r.Resample([]int16{1, 2, 3, 4, 5, 6})
	r.Reset()

	if r.position != 0 || r.havePrev {
		t.Error("Reset should clear position and carried frame")
	}
}

// ABOUTME: Tests for decoders
// ABOUTME: Covers the extension factory, tone, WAV, resampling and MP3 duration math
package decode

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
)

// writeWAV writes a 16-bit PCM WAV file containing samples
func writeWAV(t *testing.T, path string, rate, channels int, samples []int16) {
	t.Helper()

	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataSize))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
}

func TestNewByExtension(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"song.mp3", false},
		{"SONG.MP3", false},
		{"song.wav", false},
		{"song.flac", false},
		{"song.ogg", true},
		{"song", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d, err := New(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Errorf("expected ErrUnsupported, got %v", err)
				}
				return
			}
			if err != nil || d == nil {
				t.Errorf("expected decoder, got %v", err)
			}
			if !Supported(tt.path) {
				t.Errorf("Supported(%q) = false", tt.path)
			}
		})
	}
}

func TestToneDecoder(t *testing.T) {
	format := audio.Format{SampleRate: 1000, Channels: 2}
	tone := NewTone(100, 100*time.Millisecond, format)

	if err := tone.Open(""); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	total := 0
	buf := make([]int16, 64)
	for !tone.EOF() {
		n, err := tone.Decode(buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		total += n
	}

	// 100 frames of stereo
	if total != 200 {
		t.Errorf("expected 200 samples, got %d", total)
	}
	if tone.Duration() != 100*time.Millisecond {
		t.Errorf("expected 100ms duration, got %v", tone.Duration())
	}

	n, _ := tone.Decode(buf)
	if n != 0 {
		t.Errorf("expected no samples after EOF, got %d", n)
	}
}

func TestWAVDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int16, 8000*2)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	writeWAV(t, path, 8000, 2, samples)

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	f := d.Format()
	if f.SampleRate != 8000 || f.Channels != 2 || f.BitDepth != 16 {
		t.Errorf("unexpected format %v", f)
	}
	if d.Duration() != time.Second {
		t.Errorf("expected 1s duration, got %v", d.Duration())
	}

	got := make([]int16, 0, len(samples))
	buf := make([]int16, 1024)
	for i := 0; i < 100 && !d.EOF(); i++ {
		n, err := d.Decode(buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		got = append(got, buf[:n]...)
	}

	if !d.EOF() {
		t.Fatal("expected EOF after decoding the whole file")
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := 0; i < len(samples); i += 997 {
		diff := int(got[i]) - int(samples[i])
		if diff < -1 || diff > 1 {
			t.Errorf("sample %d: expected ~%d, got %d", i, samples[i], got[i])
		}
	}
}

func TestResampledDecoder(t *testing.T) {
	tone := NewTone(440, time.Second, audio.Format{SampleRate: 24000, Channels: 1})
	r := NewResampled(tone, 48000)

	if r.Format().SampleRate != 48000 {
		t.Errorf("expected 48000Hz output, got %d", r.Format().SampleRate)
	}

	total := 0
	buf := make([]int16, 4096)
	for i := 0; i < 1000 && !r.EOF(); i++ {
		n, err := r.Decode(buf)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		total += n
	}

	if total < 47900 || total > 48000 {
		t.Errorf("expected about 48000 samples, got %d", total)
	}
}

func TestMP3Duration(t *testing.T) {
	tests := []struct {
		name     string
		length   int64
		rate     int
		size     int64
		kbps     int
		expected time.Duration
	}{
		{"decoded length", 44100 * 4 * 10, 44100, 0, 0, 10 * time.Second},
		{"bitrate estimate", -1, 44100, 128000 / 8 * 60, 128, 60 * time.Second},
		{"fallback", -1, 44100, 1000, 0, DefaultMP3Duration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mp3Duration(tt.length, tt.rate, tt.size, tt.kbps)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestParseBitrate(t *testing.T) {
	// MPEG1 Layer III, 128kbps, 44.1kHz
	frame := []byte{0xFF, 0xFB, 0x90, 0x00}

	kbps, err := parseBitrate(frame)
	if err != nil || kbps != 128 {
		t.Errorf("expected 128kbps, got %d (%v)", kbps, err)
	}

	// Same frame behind a 20-byte ID3v2 tag
	tagged := append([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 10}, make([]byte, 10)...)
	tagged = append(tagged, frame...)
	kbps, err = parseBitrate(tagged)
	if err != nil || kbps != 128 {
		t.Errorf("expected 128kbps after ID3 tag, got %d (%v)", kbps, err)
	}

	if _, err := parseBitrate([]byte{0, 1, 2, 3, 4}); err == nil {
		t.Error("expected error for data without a frame header")
	}
}

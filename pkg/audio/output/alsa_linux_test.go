//go:build linux

// ABOUTME: Tests for the ALSA backend that need no sound card
// ABOUTME: Tests the sample layouts tried when opening a PCM
package output

import (
	"testing"

	"github.com/gen2brain/alsa"
	"github.com/nigamp/nigamp/pkg/audio"
)

func TestEncoderForSampleFormats(t *testing.T) {
	tests := []struct {
		name  string
		pcm   alsa.PcmFormat
		width int
		want  []byte
	}{
		{name: "S16_LE", pcm: alsa.SNDRV_PCM_FORMAT_S16_LE, width: 2, want: []byte{0x01, 0x00, 0xFF, 0xFF}},
		{name: "S24_3LE", pcm: alsa.SNDRV_PCM_FORMAT_S24_3LE, width: 3, want: []byte{0x00, 0x01, 0x00, 0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := encoderFor(tt.pcm, audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16})
			if err != nil {
				t.Fatalf("encoderFor failed: %v", err)
			}
			if got := enc.BytesPerSample(); got != tt.width {
				t.Errorf("BytesPerSample() = %d, want %d", got, tt.width)
			}

			dst := make([]byte, len(tt.want))
			if n := enc.EncodeInto(dst, []int16{1, -1}); n != len(tt.want) {
				t.Fatalf("EncodeInto wrote %d bytes, want %d", n, len(tt.want))
			}
			if string(dst) != string(tt.want) {
				t.Errorf("EncodeInto = %x, want %x", dst, tt.want)
			}
		})
	}
}

func TestSampleFormatsHaveEncoders(t *testing.T) {
	if sampleFormats[0] != alsa.SNDRV_PCM_FORMAT_S16_LE {
		t.Error("S16_LE should be tried first")
	}
	for _, f := range sampleFormats {
		if _, err := encoderFor(f, audio.Format{SampleRate: 44100, Channels: 2}); err != nil {
			t.Errorf("no encoder for %s: %v", alsa.PcmParamFormatNames[f], err)
		}
	}
}

// ABOUTME: Test tone generator implementing Decoder
// ABOUTME: Generates a bounded sine wave for device probing and tests
package decode

import (
	"math"
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
)

// ToneDecoder generates a sine wave of fixed length
type ToneDecoder struct {
	frequency  float64
	amplitude  float64
	format     audio.Format
	duration   time.Duration
	frameIndex int64
	totalFrame int64
}

// NewTone creates a tone of the given frequency and length
func NewTone(frequency float64, duration time.Duration, format audio.Format) *ToneDecoder {
	format.Codec = "tone"
	format.BitDepth = 16
	t := &ToneDecoder{
		frequency: frequency,
		amplitude: 0.5,
		format:    format,
		duration:  duration,
	}
	t.totalFrame = int64(format.SamplesFor(duration) / max(format.Channels, 1))
	return t
}

// Open rewinds the tone; the path is ignored
func (t *ToneDecoder) Open(string) error {
	t.frameIndex = 0
	return nil
}

// Decode writes the next frames of the sine wave
func (t *ToneDecoder) Decode(buf []int16) (int, error) {
	channels := t.format.Channels
	frames := int64(len(buf) / channels)
	if remaining := t.totalFrame - t.frameIndex; frames > remaining {
		frames = remaining
	}

	for i := int64(0); i < frames; i++ {
		ts := float64(t.frameIndex+i) / float64(t.format.SampleRate)
		v := audio.Int16FromFloat(math.Sin(2*math.Pi*t.frequency*ts) * t.amplitude)
		for ch := 0; ch < channels; ch++ {
			buf[int(i)*channels+ch] = v
		}
	}

	t.frameIndex += frames
	return int(frames) * channels, nil
}

// EOF reports whether the full duration was generated
func (t *ToneDecoder) EOF() bool { return t.frameIndex >= t.totalFrame }

// Format returns the generated PCM format
func (t *ToneDecoder) Format() audio.Format { return t.format }

// Duration returns the tone length
func (t *ToneDecoder) Duration() time.Duration { return t.duration }

// Seek moves the generator to pos
func (t *ToneDecoder) Seek(pos time.Duration) error {
	frame := int64(t.format.SamplesFor(pos) / t.format.Channels)
	if frame > t.totalFrame {
		frame = t.totalFrame
	}
	t.frameIndex = frame
	return nil
}

// Close is a no-op
func (t *ToneDecoder) Close() error { return nil }

// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files through beep with an exact frame-count duration
package decode

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/nigamp/nigamp/pkg/audio"
)

// WAVDecoder decodes WAV audio
type WAVDecoder struct {
	streamer beep.StreamSeekCloser
	format   audio.Format
	frames   int
	scratch  [][2]float64
	eof      bool
}

// NewWAV creates a new WAV decoder
func NewWAV() *WAVDecoder {
	return &WAVDecoder{}
}

// Open parses the WAV header of path
func (d *WAVDecoder) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	// The streamer owns f from here on
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := format.NumChannels
	if channels > 2 {
		channels = 2
	}

	d.streamer = streamer
	d.frames = streamer.Len()
	d.eof = false
	d.format = audio.Format{
		Codec:      "wav",
		SampleRate: int(format.SampleRate),
		Channels:   channels,
		BitDepth:   16,
	}

	return nil
}

// Decode converts WAV frames to int16 samples
func (d *WAVDecoder) Decode(buf []int16) (int, error) {
	if d.streamer == nil {
		return 0, fmt.Errorf("wav decoder not open")
	}
	if d.eof {
		return 0, nil
	}

	frames := len(buf) / d.format.Channels
	if frames == 0 {
		return 0, nil
	}
	if cap(d.scratch) < frames {
		d.scratch = make([][2]float64, frames)
	}
	scratch := d.scratch[:frames]

	n, ok := d.streamer.Stream(scratch)
	if err := d.streamer.Err(); err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if !ok || n < frames {
		d.eof = true
	}

	// beep duplicates mono into both channels, so the left one is enough
	written := 0
	for i := 0; i < n; i++ {
		buf[written] = audio.Int16FromFloat(scratch[i][0])
		written++
		if d.format.Channels == 2 {
			buf[written] = audio.Int16FromFloat(scratch[i][1])
			written++
		}
	}

	return written, nil
}

// EOF reports whether the decoder reached the end of the stream
func (d *WAVDecoder) EOF() bool { return d.eof }

// Format returns the decoded PCM format
func (d *WAVDecoder) Format() audio.Format { return d.format }

// Duration returns frames / sample rate
func (d *WAVDecoder) Duration() time.Duration {
	if d.format.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(d.frames) * int64(time.Second) / int64(d.format.SampleRate))
}

// Seek jumps to pos
func (d *WAVDecoder) Seek(pos time.Duration) error {
	if d.streamer == nil {
		return fmt.Errorf("wav decoder not open")
	}
	frame := int(int64(pos) * int64(d.format.SampleRate) / int64(time.Second))
	if frame > d.frames {
		frame = d.frames
	}
	if err := d.streamer.Seek(frame); err != nil {
		return fmt.Errorf("wav seek failed: %w", err)
	}
	d.eof = frame >= d.frames
	return nil
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	if d.streamer == nil {
		return nil
	}
	err := d.streamer.Close()
	d.streamer = nil
	return err
}

// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to int16 samples with a sample-count duration
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mewkiz/flac"
	"github.com/nigamp/nigamp/pkg/audio"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	stream  *flac.Stream
	format  audio.Format
	srcBits int
	total   uint64
	pending []int16
	eof     bool
}

// NewFLAC creates a new FLAC decoder
func NewFLAC() *FLACDecoder {
	return &FLACDecoder{}
}

// Open parses the FLAC stream info of path
func (d *FLACDecoder) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	d.stream = stream
	d.srcBits = int(info.BitsPerSample)
	d.total = info.NSamples
	d.pending = d.pending[:0]
	d.eof = false
	d.format = audio.Format{
		Codec:      "flac",
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   16,
	}

	return nil
}

// Decode converts FLAC frames to int16 samples
func (d *FLACDecoder) Decode(buf []int16) (int, error) {
	if d.stream == nil {
		return 0, fmt.Errorf("flac decoder not open")
	}

	written := 0
	for written < len(buf) {
		if len(d.pending) == 0 {
			if d.eof {
				break
			}
			if err := d.parseFrame(); err != nil {
				return written, err
			}
			continue
		}

		n := copy(buf[written:], d.pending)
		d.pending = d.pending[n:]
		written += n
	}

	return written, nil
}

// parseFrame interleaves the next frame into pending
func (d *FLACDecoder) parseFrame() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			d.eof = true
			return nil
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	channels := d.format.Channels
	blockSize := int(frame.BlockSize)
	if cap(d.pending) < blockSize*channels {
		d.pending = make([]int16, 0, blockSize*channels)
	}
	out := d.pending[:0]
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, audio.Int16FromInt32(frame.Subframes[ch].Samples[i], d.srcBits))
		}
	}
	d.pending = out

	return nil
}

// EOF reports whether all frames were decoded and drained
func (d *FLACDecoder) EOF() bool { return d.eof && len(d.pending) == 0 }

// Format returns the decoded PCM format
func (d *FLACDecoder) Format() audio.Format { return d.format }

// Duration returns total samples / sample rate
func (d *FLACDecoder) Duration() time.Duration {
	if d.format.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(d.total) * int64(time.Second) / int64(d.format.SampleRate))
}

// Seek jumps to the frame containing pos
func (d *FLACDecoder) Seek(pos time.Duration) error {
	if d.stream == nil {
		return fmt.Errorf("flac decoder not open")
	}
	sample := uint64(int64(pos) * int64(d.format.SampleRate) / int64(time.Second))
	if _, err := d.stream.Seek(sample); err != nil {
		return fmt.Errorf("flac seek failed: %w", err)
	}
	d.pending = d.pending[:0]
	d.eof = false
	return nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}

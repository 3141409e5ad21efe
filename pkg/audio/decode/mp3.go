// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to int16 samples with length or bitrate based duration
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/nigamp/nigamp/pkg/audio"
)

// DefaultMP3Duration is used when neither the stream length nor the bitrate is known
const DefaultMP3Duration = 180 * time.Second

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	file     *os.File
	decoder  *mp3.Decoder
	format   audio.Format
	duration time.Duration
	raw      []byte
	eof      bool
}

// NewMP3 creates a new MP3 decoder
func NewMP3() *MP3Decoder {
	return &MP3Decoder{}
}

// Open opens an MP3 file and estimates its duration
func (d *MP3Decoder) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat MP3 file: %w", err)
	}

	bitrate := 0
	if kbps, herr := probeBitrate(f); herr == nil {
		bitrate = kbps
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return fmt.Errorf("failed to rewind MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode MP3: %w", err)
	}

	d.file = f
	d.decoder = decoder
	d.eof = false
	// go-mp3 always produces 16-bit stereo
	d.format = audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}
	d.duration = mp3Duration(decoder.Length(), decoder.SampleRate(), info.Size(), bitrate)

	return nil
}

// mp3Duration prefers the decoded length and falls back to size*8/bitrate
func mp3Duration(lengthBytes int64, sampleRate int, fileSize int64, bitrateKbps int) time.Duration {
	if lengthBytes > 0 && sampleRate > 0 {
		frames := lengthBytes / 4
		return time.Duration(frames * int64(time.Second) / int64(sampleRate))
	}
	if bitrateKbps > 0 && fileSize > 0 {
		seconds := float64(fileSize*8) / float64(bitrateKbps*1000)
		return time.Duration(seconds * float64(time.Second))
	}
	return DefaultMP3Duration
}

// Decode converts MP3 frames to int16 samples
func (d *MP3Decoder) Decode(buf []int16) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("mp3 decoder not open")
	}
	if d.eof || len(buf) == 0 {
		return 0, nil
	}

	need := len(buf) * 2
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	raw := d.raw[:need]

	n, err := io.ReadFull(d.decoder, raw)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.eof = true
		} else {
			return 0, fmt.Errorf("mp3 decode error: %w", err)
		}
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	return numSamples, nil
}

// EOF reports whether the decoder reached the end of the stream
func (d *MP3Decoder) EOF() bool { return d.eof }

// Format returns the decoded PCM format
func (d *MP3Decoder) Format() audio.Format { return d.format }

// Duration returns the estimated track length
func (d *MP3Decoder) Duration() time.Duration { return d.duration }

// Seek jumps to pos, aligned to a stereo frame
func (d *MP3Decoder) Seek(pos time.Duration) error {
	if d.decoder == nil {
		return fmt.Errorf("mp3 decoder not open")
	}
	frames := int64(pos) * int64(d.format.SampleRate) / int64(time.Second)
	if _, err := d.decoder.Seek(frames*4, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek failed: %w", err)
	}
	d.eof = false
	return nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	d.decoder = nil
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

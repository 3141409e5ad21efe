// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for file decoders and the extension-based factory
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
)

// ErrUnsupported is returned for files no decoder handles
var ErrUnsupported = errors.New("unsupported audio format")

// Decoder produces interleaved 16-bit PCM from an audio file
type Decoder interface {
	// Open prepares the decoder to read path
	Open(path string) error

	// Decode fills buf with samples and returns how many were written.
	// End of stream is reported through EOF, never as an error.
	Decode(buf []int16) (int, error)

	// EOF reports whether the stream has been fully decoded
	EOF() bool

	// Format returns the PCM format Decode produces
	Format() audio.Format

	// Duration returns the (possibly estimated) track length
	Duration() time.Duration

	// Seek repositions the stream
	Seek(pos time.Duration) error

	// Close releases decoder resources
	Close() error
}

// SupportedExtensions lists the file extensions New accepts
var SupportedExtensions = []string{".mp3", ".wav", ".flac"}

// Supported reports whether path has a decodable extension
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// New returns an unopened decoder for path based on its extension
func New(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return NewMP3(), nil
	case ".wav":
		return NewWAV(), nil
	case ".flac":
		return NewFLAC(), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported, ext, strings.Join(SupportedExtensions, ", "))
	}
}

// Open creates and opens the decoder for path
func Open(path string) (Decoder, error) {
	d, err := New(path)
	if err != nil {
		return nil, err
	}
	if err := d.Open(path); err != nil {
		return nil, err
	}
	return d, nil
}

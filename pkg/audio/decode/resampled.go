// ABOUTME: Resampling decoder wrapper
// ABOUTME: Presents any Decoder at a fixed output sample rate
package decode

import (
	"time"

	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/resample"
)

// Resampled converts an inner decoder's output to another sample rate
type Resampled struct {
	inner     Decoder
	rate      int
	resampler *resample.Resampler
	scratch   []int16
	pending   []int16
}

// NewResampled wraps an opened decoder so Decode yields samples at rate
func NewResampled(inner Decoder, rate int) *Resampled {
	f := inner.Format()
	return &Resampled{
		inner:     inner,
		rate:      rate,
		resampler: resample.New(f.SampleRate, rate, f.Channels),
	}
}

// Open opens the inner decoder and resets interpolation state
func (r *Resampled) Open(path string) error {
	if err := r.inner.Open(path); err != nil {
		return err
	}
	f := r.inner.Format()
	r.resampler = resample.New(f.SampleRate, r.rate, f.Channels)
	r.pending = r.pending[:0]
	return nil
}

// Decode fills buf with resampled audio
func (r *Resampled) Decode(buf []int16) (int, error) {
	written := 0
	for written < len(buf) {
		if len(r.pending) == 0 {
			if r.inner.EOF() {
				break
			}
			if cap(r.scratch) < len(buf) {
				r.scratch = make([]int16, len(buf))
			}
			n, err := r.inner.Decode(r.scratch[:len(buf)])
			if err != nil {
				return written, err
			}
			r.pending = r.resampler.Resample(r.scratch[:n])
			if n == 0 && !r.inner.EOF() {
				break
			}
			continue
		}

		n := copy(buf[written:], r.pending)
		r.pending = r.pending[n:]
		written += n
	}
	return written, nil
}

// EOF reports whether the inner stream and the resample backlog are drained
func (r *Resampled) EOF() bool { return r.inner.EOF() && len(r.pending) == 0 }

// Format returns the inner format at the output rate
func (r *Resampled) Format() audio.Format {
	f := r.inner.Format()
	f.SampleRate = r.rate
	return f
}

// Duration is unchanged by resampling
func (r *Resampled) Duration() time.Duration { return r.inner.Duration() }

// Seek seeks the inner decoder and drops buffered output
func (r *Resampled) Seek(pos time.Duration) error {
	if err := r.inner.Seek(pos); err != nil {
		return err
	}
	r.resampler.Reset()
	r.pending = r.pending[:0]
	return nil
}

// Close closes the inner decoder
func (r *Resampled) Close() error { return r.inner.Close() }

// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int16 samples to little-endian 16-bit or 24-bit PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/nigamp/nigamp/pkg/audio"
)

// PCMEncoder encodes little-endian PCM
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder for the format's bit depth
func NewPCM(format audio.Format) (Encoder, error) {
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// EncodeInto writes as many samples as fit into dst
func (e *PCMEncoder) EncodeInto(dst []byte, samples []int16) int {
	width := e.BytesPerSample()
	n := len(dst) / width
	if n > len(samples) {
		n = len(samples)
	}

	if e.bitDepth == 24 {
		// Left-justify the 16-bit value in a 3-byte container
		for i := 0; i < n; i++ {
			v := int32(samples[i]) << 8
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		}
	} else {
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(samples[i]))
		}
	}

	return n * width
}

// BytesPerSample reports the encoded sample width
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

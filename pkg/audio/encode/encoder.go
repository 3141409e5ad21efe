// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for turning 16-bit samples into device bytes
package encode

// Encoder encodes interleaved int16 samples to a byte layout a device accepts
type Encoder interface {
	// EncodeInto writes samples into dst and returns the bytes written.
	// Samples that do not fit in dst are ignored.
	EncodeInto(dst []byte, samples []int16) int

	// BytesPerSample reports the encoded width of one sample
	BytesPerSample() int

	// Close releases encoder resources
	Close() error
}

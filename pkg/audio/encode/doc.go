// ABOUTME: Audio encoder package for device byte layouts
// ABOUTME: Provides Encoder interface and the PCM implementation
// Package encode turns interleaved int16 samples into the little-endian
// byte layouts consumed by byte-oriented output backends (ALSA, oto, malgo).
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	n := encoder.EncodeInto(deviceBuf, samples)
package encode

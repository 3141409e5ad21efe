// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device interface and ALSA, oto, malgo, PortAudio and null backends
// Package output provides audio playback devices for the polling engine.
//
// Every backend exposes the same capability set: query free space, write
// interleaved int16 samples, recover from an underrun, pause, drop and close.
// Callback-driven libraries (oto, malgo) are adapted through a RingBuffer.
//
// Example:
//
//	dev, err := output.New("alsa", output.DefaultConfig())
//	err = dev.Open(format)
//	free, err := dev.Available()
//	n, err := dev.Write(samples[:free])
package output

// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and 16-bit sample helpers
// Package audio provides the PCM types shared by the playback engine.
//
// All sample data in nigamp is interleaved signed 16-bit PCM. Decoders
// reduce wider sources to 16 bits, and device backends receive []int16.
//
// Example:
//
//	format := audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
//	period := format.SamplesFor(50 * time.Millisecond)
//	audio.ApplyVolume(samples, 0.8)
package audio

// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts int16 audio between sample rates
// Package resample provides audio sample rate conversion.
//
// Used when an output device is locked to a single rate for the life of
// the process (oto allows one context) and a track arrives at another rate.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Resample(chunk)
package resample

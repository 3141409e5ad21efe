// ABOUTME: Audio decoder package for local music files
// ABOUTME: Provides Decoder interface and MP3, WAV, FLAC and tone implementations
// Package decode turns audio files into interleaved 16-bit PCM.
//
// Supports: MP3 (go-mp3), WAV (beep), FLAC (mewkiz/flac) and a generated
// sine tone. Every decoder reports end of stream through EOF() rather than
// an error, and exposes a Duration estimate used for playback pacing.
//
// Example:
//
//	d, err := decode.Open("/music/song.mp3")
//	n, err := d.Decode(buf)
//	if d.EOF() { ... }
package decode

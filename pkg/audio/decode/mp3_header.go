// ABOUTME: MP3 frame header probing
// ABOUTME: Reads the first frame's bitrate for the size-based duration estimate
package decode

import (
	"errors"
	"io"
)

var errNoFrameHeader = errors.New("no mp3 frame header found")

// Bitrates in kbps indexed by [version][layer][index].
// version: 0 = MPEG1, 1 = MPEG2/2.5. layer: 0 = I, 1 = II, 2 = III.
var mp3Bitrates = [2][3][16]int{
	{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

// probeBitrate skips an ID3v2 tag and returns the first frame's bitrate
func probeBitrate(r io.Reader) (int, error) {
	head := make([]byte, 64*1024)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	return parseBitrate(head[:n])
}

func parseBitrate(data []byte) (int, error) {
	start := 0
	if len(data) >= 10 && string(data[:3]) == "ID3" {
		// Synchsafe size excludes the 10-byte header
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		start = 10 + size
	}

	for i := start; i+3 < len(data); i++ {
		if data[i] != 0xFF || data[i+1]&0xE0 != 0xE0 {
			continue
		}

		versionBits := (data[i+1] >> 3) & 0x03
		layerBits := (data[i+1] >> 1) & 0x03
		index := data[i+2] >> 4
		if versionBits == 0x01 || layerBits == 0 || index == 0 || index == 0x0F {
			continue
		}

		version := 1
		if versionBits == 0x03 {
			version = 0
		}
		layer := 3 - int(layerBits)

		return mp3Bitrates[version][layer][index], nil
	}

	return 0, errNoFrameHeader
}

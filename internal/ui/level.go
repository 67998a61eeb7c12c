package ui

import (
	"encoding/binary"
	"math"
)

// Level returns the RMS level of little-endian PCM scaled to 0..1. 8-bit
// samples are unsigned, wider ones signed.
func Level(pcm []byte, width int) float64 {
	if width < 1 || width > 3 || len(pcm) < width {
		return 0
	}

	var sum float64
	n := len(pcm) / width
	full := float64(int(1) << (8*width - 1))
	for i := range n {
		s := pcm[i*width : (i+1)*width]
		var v float64
		switch width {
		case 1:
			v = float64(int(s[0]) - 128)
		case 2:
			v = float64(int16(binary.LittleEndian.Uint16(s)))
		case 3:
			// sign-extend 24 bits
			v = float64(int32(uint32(s[0])|uint32(s[1])<<8|uint32(s[2])<<16) << 8 >> 8)
		}
		v /= full
		sum += v * v
	}
	return min(math.Sqrt(sum/float64(n)), 1)
}

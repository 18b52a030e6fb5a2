package audio

import (
	"encoding/binary"
	"math"
)

// Level returns the RMS loudness of S16LE samples scaled to [0, 1] over a
// 50 dB window ending at full scale. Clipped input reports at least 0.95.
func Level(pcm []byte) float32 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	clipping := false
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		if s == math.MaxInt16 || s == math.MinInt16 {
			clipping = true
		}
		v := float64(s)
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms/32768.0)
	level := (db + 60) / 50
	if clipping {
		level = math.Max(level, 0.95)
	}
	return float32(math.Min(1, math.Max(0, level)))
}

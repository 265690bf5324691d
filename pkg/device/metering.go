package device

import (
	"encoding/binary"
	"math"
)

const (
	// MinDB is the floor reported for silence.
	MinDB = -60.0

	// maxSampleValue is full scale for 16-bit signed audio.
	maxSampleValue = 32768.0
)

// PeakDB returns the peak level of S16LE mono PCM in dBFS, floored at MinDB.
func PeakDB(buf []byte) float64 {
	var peak float64
	for i := 0; i+1 < len(buf); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}

	if peak == 0 {
		return MinDB
	}
	return max(20*math.Log10(peak/maxSampleValue), MinDB)
}

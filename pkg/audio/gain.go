// ABOUTME: In-place software gain for interleaved PCM byte buffers
// ABOUTME: Used by backends without a native per-stream volume property
package audio

import (
	"encoding/binary"
	"math"
)

// ApplyGain scales every sample in buf by gain, clamping to the format's
// range. A gain of 1 is a no-op; a gain of 0 silences the buffer. Bytes
// beyond the last whole sample are left untouched.
func ApplyGain(buf []byte, f SampleFormat, gain float32) {
	if gain == 1 {
		return
	}
	switch f {
	case FormatS8:
		for i, b := range buf {
			buf[i] = byte(int8(clamp(float64(int8(b))*float64(gain), math.MinInt8, math.MaxInt8)))
		}
	case FormatS16:
		for i := 0; i+2 <= len(buf); i += 2 {
			s := int16(binary.LittleEndian.Uint16(buf[i:]))
			v := clamp(float64(s)*float64(gain), math.MinInt16, math.MaxInt16)
			binary.LittleEndian.PutUint16(buf[i:], uint16(int16(v)))
		}
	case FormatS32:
		for i := 0; i+4 <= len(buf); i += 4 {
			s := int32(binary.LittleEndian.Uint32(buf[i:]))
			v := clamp(float64(s)*float64(gain), math.MinInt32, math.MaxInt32)
			binary.LittleEndian.PutUint32(buf[i:], uint32(int32(v)))
		}
	case FormatF32:
		for i := 0; i+4 <= len(buf); i += 4 {
			s := math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
			binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s*gain))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

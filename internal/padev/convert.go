// ABOUTME: PCM byte-to-sample conversion for the portaudio chunk buffers
// ABOUTME: Applies gain during conversion; short chunks zero-pad
package padev

import (
	"encoding/binary"
	"math"
)

// The stream buffers registered with portaudio are typed slices; these
// fill them from little-endian PCM bytes, scaling by gain and zeroing
// any tail beyond the chunk so a short final chunk plays silence.

func bytesToInt16(dst []int16, src []byte, gain float64) {
	n := len(src) / 2
	for i := 0; i < len(dst); i++ {
		if i >= n {
			dst[i] = 0
			continue
		}
		s := float64(int16(binary.LittleEndian.Uint16(src[i*2:]))) * gain
		dst[i] = int16(clamp(s, math.MinInt16, math.MaxInt16))
	}
}

func bytesToInt32(dst []int32, src []byte, gain float64) {
	n := len(src) / 4
	for i := 0; i < len(dst); i++ {
		if i >= n {
			dst[i] = 0
			continue
		}
		s := float64(int32(binary.LittleEndian.Uint32(src[i*4:]))) * gain
		dst[i] = int32(clamp(s, math.MinInt32, math.MaxInt32))
	}
}

func bytesToFloat32(dst []float32, src []byte, gain float64) {
	n := len(src) / 4
	for i := 0; i < len(dst); i++ {
		if i >= n {
			dst[i] = 0
			continue
		}
		s := math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		dst[i] = float32(float64(s) * gain)
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

// ABOUTME: Tests for in-place software gain
// ABOUTME: Covers scaling, mute, clamping and the unity fast path
package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func s16buf(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func s16at(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[i*2:]))
}

func TestApplyGainS16(t *testing.T) {
	buf := s16buf(1000, -1000, 500, -500)
	ApplyGain(buf, FormatS16, 0.5)

	want := []int16{500, -500, 250, -250}
	for i, w := range want {
		if got := s16at(buf, i); got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestApplyGainMute(t *testing.T) {
	buf := s16buf(1000, -1000)
	ApplyGain(buf, FormatS16, 0)

	for i := 0; i < 2; i++ {
		if got := s16at(buf, i); got != 0 {
			t.Errorf("sample %d: expected silence, got %d", i, got)
		}
	}
}

func TestApplyGainClamps(t *testing.T) {
	buf := s16buf(30000, -30000)
	ApplyGain(buf, FormatS16, 2)

	if got := s16at(buf, 0); got != math.MaxInt16 {
		t.Errorf("expected clamp to %d, got %d", math.MaxInt16, got)
	}
	if got := s16at(buf, 1); got != math.MinInt16 {
		t.Errorf("expected clamp to %d, got %d", math.MinInt16, got)
	}
}

func TestApplyGainF32(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(0.8))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-0.4))

	ApplyGain(buf, FormatF32, 0.5)

	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])); got != 0.4 {
		t.Errorf("expected 0.4, got %f", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])); got != -0.2 {
		t.Errorf("expected -0.2, got %f", got)
	}
}

func TestApplyGainS8(t *testing.T) {
	neg := int8(-100)
	buf := []byte{byte(int8(100)), byte(neg)}
	ApplyGain(buf, FormatS8, 0.5)

	if int8(buf[0]) != 50 || int8(buf[1]) != -50 {
		t.Errorf("expected 50/-50, got %d/%d", int8(buf[0]), int8(buf[1]))
	}
}

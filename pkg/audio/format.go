// ABOUTME: PCM fundamentals shared by every playback backend
// ABOUTME: Defines sample formats, stream direction and frame arithmetic
package audio

import "fmt"

// SampleFormat identifies a PCM sample encoding.
type SampleFormat int

const (
	FormatNone SampleFormat = iota
	FormatS8                // 8-bit signed
	FormatS16               // 16-bit signed little-endian
	FormatS32               // 32-bit signed little-endian
	FormatF32               // 32-bit IEEE float little-endian
)

// String returns the human-readable name of the format.
func (f SampleFormat) String() string {
	switch f {
	case FormatS8:
		return "s8"
	case FormatS16:
		return "s16"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// BytesPerSample returns the encoded size of one sample, or 0 for
// an invalid format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS8:
		return 1
	case FormatS16:
		return 2
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// Direction distinguishes playback from capture streams.
type Direction int

const (
	DirectionOutput Direction = iota
	DirectionInput
)

// String returns the human-readable name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionOutput:
		return "output"
	case DirectionInput:
		return "input"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// FrameSize returns the byte size of one interleaved frame.
func FrameSize(f SampleFormat, channels int) int {
	return f.BytesPerSample() * channels
}

// FrameCount returns how many whole frames byteLen holds.
// Returns 0 for invalid formats or channel counts.
func FrameCount(f SampleFormat, channels, byteLen int) int {
	fs := FrameSize(f, channels)
	if fs <= 0 {
		return 0
	}
	return byteLen / fs
}

// ABOUTME: Public contract implemented by every audio output backend
// ABOUTME: Defines the Driver and Session interfaces and the open contract
package backend

import (
	"time"

	"github.com/audiobridge/audiobridge-go/pkg/audio"
)

// Kind identifies a concrete backend implementation.
type Kind int

const (
	KindNull Kind = iota
	KindOto
	KindMiniaudio
	KindPortAudio
)

// String returns the backend's registry name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindOto:
		return "oto"
	case KindMiniaudio:
		return "miniaudio"
	case KindPortAudio:
		return "portaudio"
	default:
		return "unknown"
	}
}

// MemoryAccessor lets a session read caller-owned sample memory when
// buffers are queued by range instead of by value.
type MemoryAccessor interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// Driver owns one native audio context and the set of sessions opened
// from it. Implementations are safe for concurrent use.
//
// Open is reference-counted: the first call brings up the native context
// and any background machinery, later calls are cheap increments. Close
// undoes one Open; the last Close tears everything down, cascading over
// any sessions still registered. Closing an already-closed driver is a
// no-op.
type Driver interface {
	Open() error

	// OpenDeviceSession negotiates and opens one independent output
	// stream. A channelCount of 0 selects stereo, a sampleRate of 0
	// selects the backend's target rate. The capability predicates
	// below should be consulted first; the driver re-validates anyway
	// and fails rather than downgrade the request.
	OpenDeviceSession(dir audio.Direction, memory MemoryAccessor, format audio.SampleFormat,
		sampleRate, channelCount int, volume float32) (Session, error)

	// UpdateRequiredFlag is set whenever some session retired buffers
	// and the caller should drain; the caller clears it.
	UpdateRequiredFlag() *Flag

	// PauseFlag gates whether sessions may advance while set.
	PauseFlag() *Flag

	SupportsDirection(d audio.Direction) bool
	SupportsSampleFormat(f audio.SampleFormat) bool
	SupportsSampleRate(rate int) bool
	SupportsChannelCount(n int) bool

	Close() error
}

// Session is one audio output stream: a FIFO of in-flight PCM buffers
// with played-sample accounting. Buffers retire strictly in submission
// order. All methods are safe for concurrent use and none of them block
// beyond a short critical section.
type Session interface {
	// QueueBuffer frames pcm into a native buffer, appends it to the
	// session's FIFO under the caller-supplied identity and, when the
	// session is active, makes sure native playback is running.
	QueueBuffer(id uintptr, pcm []byte) error

	// QueueBufferRange is QueueBuffer reading length bytes at off
	// through the session's MemoryAccessor.
	QueueBufferRange(id uintptr, off int64, length int) error

	Start() error
	Stop() error

	SetVolume(v float32) error
	Volume() float32

	// WasBufferConsumed reports whether the identified buffer is no
	// longer the oldest pending one, i.e. the caller may reclaim it.
	WasBufferConsumed(id uintptr) bool

	// PlayedSampleCount is the monotonic count of sample frames fully
	// played back on this session.
	PlayedSampleCount() uint64

	// QueuedBufferCount is the number of buffers still in flight.
	QueuedBufferCount() int

	// Update reconciles buffers the native layer finished since the
	// last call, reporting whether anything retired. Push-model
	// backends are driven here by the driver's update loop; callback
	// backends retire inline and treat this as a cheap poll.
	Update() bool

	Close() error
}

// DefaultChannelCount and DefaultSampleRate back the zero sentinels of
// the session open contract.
const (
	DefaultChannelCount = 2
	DefaultSampleRate   = 48000
)

// DefaultUpdateInterval is the tick period of a driver's update loop.
const DefaultUpdateInterval = 20 * time.Millisecond

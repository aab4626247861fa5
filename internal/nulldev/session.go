// ABOUTME: Null backend session
// ABOUTME: Accepts buffers normally, retires them all on the next update
package nulldev

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/audiobridge/audiobridge-go/internal/bufq"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
)

// Session discards its audio but keeps real queue bookkeeping, so
// played-sample accounting behaves exactly as on a hardware backend.
type Session struct {
	id       uuid.UUID
	driver   *Driver
	memory   backend.MemoryAccessor
	format   audio.SampleFormat
	rate     int
	channels int

	q      *bufq.Queue
	active atomic.Bool
	closed atomic.Bool
	gain   atomic.Uint32
}

func newSession(d *Driver, memory backend.MemoryAccessor, format audio.SampleFormat,
	rate, channels int, volume float32) *Session {

	s := &Session{
		id:       uuid.New(),
		driver:   d,
		memory:   memory,
		format:   format,
		rate:     rate,
		channels: channels,
		q:        bufq.New(),
	}
	_ = s.SetVolume(volume)
	return s
}

func (s *Session) QueueBuffer(id uintptr, pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("queue buffer: %w", backend.ErrClosed)
	}
	frames := uint64(audio.FrameCount(s.format, s.channels, len(pcm)))
	// The payload is dropped; only the frame count matters here.
	s.q.Push(id, nil, frames)
	return nil
}

func (s *Session) QueueBufferRange(id uintptr, off int64, length int) error {
	pcm, err := backend.ReadRange(s.memory, off, length)
	if err != nil {
		return err
	}
	return s.QueueBuffer(id, pcm)
}

func (s *Session) Start() error {
	s.active.Store(true)
	return nil
}

func (s *Session) Stop() error {
	s.active.Store(false)
	return nil
}

func (s *Session) SetVolume(v float32) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.gain.Store(math.Float32bits(v))
	return nil
}

func (s *Session) Volume() float32 {
	return math.Float32frombits(s.gain.Load())
}

func (s *Session) WasBufferConsumed(id uintptr) bool {
	return s.q.WasConsumed(id)
}

func (s *Session) PlayedSampleCount() uint64 {
	return s.q.PlayedSamples()
}

func (s *Session) QueuedBufferCount() int {
	return s.q.Len()
}

// Update retires everything pending, as if the device played it
// instantly. Stopped sessions do not advance.
func (s *Session) Update() bool {
	if !s.active.Load() {
		return false
	}
	return s.q.RetireAll() > 0
}

func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.active.Store(false)
	s.driver.unregister(s.id)
	return nil
}

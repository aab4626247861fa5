// ABOUTME: oto backend session
// ABOUTME: An oto player pulls PCM from the session's pending queue
package otodev

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/audiobridge/audiobridge-go/internal/bufq"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
)

// otoPlayer is the slice of *oto.Player the session uses. Narrowed to
// an interface so session tests can substitute a fake.
type otoPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Volume() float64
	Close() error
}

// Session is one oto output stream. The player drains the queue through
// Read on oto's own goroutine; underruns read as silence so playback
// never glitches while a slow producer catches up.
type Session struct {
	id       uuid.UUID
	driver   *Driver
	memory   backend.MemoryAccessor
	format   audio.SampleFormat
	rate     int
	channels int

	q      *bufq.Queue
	player otoPlayer

	mu     sync.Mutex // serializes player control sequences
	active atomic.Bool
	closed atomic.Bool
}

func newSession(d *Driver, memory backend.MemoryAccessor, format audio.SampleFormat,
	rate, channels int) *Session {

	return &Session{
		id:       uuid.New(),
		driver:   d,
		memory:   memory,
		format:   format,
		rate:     rate,
		channels: channels,
		q:        bufq.New(),
	}
}

// Read feeds the oto player. While the session is inactive or the
// driver is paused it renders silence without touching the queue, so
// pausing halts consumption accounting, not just retirement. Always
// returns a full buffer, zero-padded on underrun, so the player never
// stalls or replays stale bytes.
func (s *Session) Read(p []byte) (int, error) {
	if !s.active.Load() || s.driver.pause.Signaled() {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	s.q.Fill(p)
	return len(p), nil
}

func (s *Session) QueueBuffer(id uintptr, pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("queue buffer: %w", backend.ErrClosed)
	}
	frames := uint64(audio.FrameCount(s.format, s.channels, len(pcm)))
	s.q.Push(id, pcm, frames)

	if s.active.Load() {
		s.ensurePlaying()
	}
	return nil
}

func (s *Session) QueueBufferRange(id uintptr, off int64, length int) error {
	pcm, err := backend.ReadRange(s.memory, off, length)
	if err != nil {
		return err
	}
	return s.QueueBuffer(id, pcm)
}

// ensurePlaying issues a native start only when the player is not
// already running; starting a running player is wasteful on some hosts.
func (s *Session) ensurePlaying() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.player.IsPlaying() {
		s.player.Play()
	}
}

func (s *Session) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("start: %w", backend.ErrClosed)
	}
	s.active.Store(true)
	s.ensurePlaying()
	return nil
}

// Stop yanks the gain to zero before pausing; pausing at nonzero gain
// audibly clicks on some hosts.
func (s *Session) Stop() error {
	if s.closed.Load() {
		return fmt.Errorf("stop: %w", backend.ErrClosed)
	}
	s.active.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	vol := s.player.Volume()
	s.player.SetVolume(0)
	s.player.Pause()
	s.player.SetVolume(vol)
	return nil
}

func (s *Session) SetVolume(v float32) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.SetVolume(float64(v))
	return nil
}

// Volume reads back the native gain; nothing is cached locally, so the
// query and control paths cannot drift apart.
func (s *Session) Volume() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float32(s.player.Volume())
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

// Update retires the buffers the player has fully pulled since the last
// tick. Called from the driver's update loop.
func (s *Session) Update() bool {
	return s.q.CollectRetired() > 0
}

func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.active.Store(false)

	s.mu.Lock()
	s.player.SetVolume(0)
	s.player.Pause()
	if err := s.player.Close(); err != nil {
		log.Printf("oto session %s: player close: %v", s.id, err)
	}
	s.mu.Unlock()

	s.driver.unregister(s.id)
	return nil
}

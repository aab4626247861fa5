// ABOUTME: portaudio backend session
// ABOUTME: A feeder goroutine writes queued buffers and retires them
package padev

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiobridge/audiobridge-go/internal/bufq"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
)

// chunkFrames is the blocking-write granularity: 10ms at 48kHz. Gate
// changes (stop, pause) take effect at the next record boundary, which
// stays within the "next native buffer boundary" promise of the
// contract.
const chunkFrames = 480

// Session is one portaudio output stream fed by a dedicated goroutine:
// the feeder takes the head record, writes it through the blocking
// stream, retires it and raises the driver's drain signal. QueueBuffer
// itself never blocks.
type Session struct {
	id       uuid.UUID
	driver   *Driver
	memory   backend.MemoryAccessor
	format   audio.SampleFormat
	rate     int
	channels int

	q      *bufq.Queue
	stream *portaudio.Stream

	// Typed chunk buffer registered with the stream; exactly one of
	// these is non-nil depending on the session format.
	buf16 []int16
	buf32 []int32
	bufF  []float32

	mu       sync.Mutex // serializes stream control and writes
	started  bool
	active   atomic.Bool
	closed   atomic.Bool
	gain     atomic.Uint32
	notify   chan struct{}
	feedStop chan struct{}
	feedDone chan struct{}
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
		notify:   make(chan struct{}, 1),
		feedStop: make(chan struct{}),
		feedDone: make(chan struct{}),
	}
	_ = s.SetVolume(volume)
	return s
}

func (s *Session) openStream() error {
	n := chunkFrames * s.channels
	var (
		stream *portaudio.Stream
		err    error
	)
	switch s.format {
	case audio.FormatS16:
		s.buf16 = make([]int16, n)
		stream, err = portaudio.OpenDefaultStream(0, s.channels, float64(s.rate), chunkFrames, s.buf16)
	case audio.FormatS32:
		s.buf32 = make([]int32, n)
		stream, err = portaudio.OpenDefaultStream(0, s.channels, float64(s.rate), chunkFrames, s.buf32)
	case audio.FormatF32:
		s.bufF = make([]float32, n)
		stream, err = portaudio.OpenDefaultStream(0, s.channels, float64(s.rate), chunkFrames, s.bufF)
	default:
		return fmt.Errorf("format %v not representable", s.format)
	}
	if err != nil {
		return err
	}
	s.stream = stream
	return nil
}

func (s *Session) startFeeder() {
	go s.feed()
}

func (s *Session) feed() {
	defer close(s.feedDone)
	for {
		select {
		case <-s.feedStop:
			return
		case <-s.notify:
		case <-time.After(100 * time.Millisecond):
			// Periodic wake to re-check the pause/active gates.
		}
		s.drain()
	}
}

// drain writes and retires pending records until the queue empties or a
// gate closes. Records are written whole; see chunkFrames.
func (s *Session) drain() {
	for {
		if !s.active.Load() || s.driver.pause.Signaled() || s.closed.Load() {
			return
		}
		rec, ok := s.q.Head()
		if !ok {
			return
		}
		s.writeRecord(rec)
		s.q.RetireHead(rec.ID)
		s.driver.updateRequired.Set()
	}
}

func (s *Session) writeRecord(rec bufq.Record) {
	frameBytes := audio.FrameSize(s.format, s.channels)
	chunkBytes := chunkFrames * frameBytes

	for off := 0; off < len(rec.Payload); off += chunkBytes {
		end := off + chunkBytes
		if end > len(rec.Payload) {
			end = len(rec.Payload)
		}
		s.writeChunk(rec.Payload[off:end])
	}
}

func (s *Session) writeChunk(chunk []byte) {
	gain := float64(s.Volume())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil || !s.ensureStartedLocked() {
		return
	}

	switch s.format {
	case audio.FormatS16:
		bytesToInt16(s.buf16, chunk, gain)
	case audio.FormatS32:
		bytesToInt32(s.buf32, chunk, gain)
	case audio.FormatF32:
		bytesToFloat32(s.bufF, chunk, gain)
	}

	if err := s.stream.Write(); err != nil {
		// Transient; the caller sees a format-preserving no-op.
		log.Printf("portaudio session %s: write: %v", s.id, err)
	}
}

func (s *Session) ensureStartedLocked() bool {
	if s.started {
		return true
	}
	if err := s.stream.Start(); err != nil {
		log.Printf("portaudio session %s: start: %v", s.id, err)
		return false
	}
	s.started = true
	return true
}

func (s *Session) QueueBuffer(id uintptr, pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("queue buffer: %w", backend.ErrClosed)
	}
	frames := uint64(audio.FrameCount(s.format, s.channels, len(pcm)))
	s.q.Push(id, pcm, frames)
	s.wakeFeeder()
	return nil
}

func (s *Session) QueueBufferRange(id uintptr, off int64, length int) error {
	pcm, err := backend.ReadRange(s.memory, off, length)
	if err != nil {
		return err
	}
	return s.QueueBuffer(id, pcm)
}

func (s *Session) wakeFeeder() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Session) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("start: %w", backend.ErrClosed)
	}
	s.active.Store(true)
	s.wakeFeeder()
	return nil
}

// Stop zeroes the gain before the native stop so the stream cannot
// click, and blocks at most one chunk write while taking the lock.
func (s *Session) Stop() error {
	if s.closed.Load() {
		return fmt.Errorf("stop: %w", backend.ErrClosed)
	}
	s.active.Store(false)

	vol := s.Volume()
	_ = s.SetVolume(0)
	defer func() { _ = s.SetVolume(vol) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || !s.started {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	s.started = false
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

// Update is a cheap poll; the feeder already retired what it wrote.
func (s *Session) Update() bool {
	return false
}

func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.active.Store(false)

	close(s.feedStop)
	<-s.feedDone

	s.mu.Lock()
	if s.stream != nil {
		if s.started {
			if err := s.stream.Stop(); err != nil {
				log.Printf("portaudio session %s: stop: %v", s.id, err)
			}
		}
		if err := s.stream.Close(); err != nil {
			log.Printf("portaudio session %s: close: %v", s.id, err)
		}
		s.stream = nil
	}
	s.mu.Unlock()

	s.driver.unregister(s.id)
	return nil
}

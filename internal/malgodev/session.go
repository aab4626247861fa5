// ABOUTME: miniaudio backend session
// ABOUTME: The device data callback drains the queue in bounded time
package malgodev

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/audiobridge/audiobridge-go/internal/bufq"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

// Session is one miniaudio output stream. The native audio thread calls
// fill on its own schedule; fill must hand back samples in bounded,
// non-blocking time because the thread has a hardware deadline, so it
// uses a try-lock queue drain and degrades to silence under contention.
type Session struct {
	id       uuid.UUID
	driver   *Driver
	memory   backend.MemoryAccessor
	format   audio.SampleFormat
	rate     int
	channels int

	q      *bufq.Queue
	device *malgo.Device

	mu     sync.Mutex // serializes device control sequences
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

func malgoFormat(f audio.SampleFormat) malgo.FormatType {
	switch f {
	case audio.FormatS16:
		return malgo.FormatS16
	case audio.FormatS32:
		return malgo.FormatS32
	case audio.FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatUnknown
	}
}

func (s *Session) openDevice(ctx *malgo.AllocatedContext) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgoFormat(s.format)
	cfg.Playback.Channels = uint32(s.channels)
	cfg.SampleRate = uint32(s.rate)
	cfg.PerformanceProfile = malgo.LowLatency
	cfg.PeriodSizeInMilliseconds = 10
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			s.fill(out)
		},
	})
	if err != nil {
		return err
	}
	s.device = dev
	return nil
}

// fill runs on the native audio thread.
func (s *Session) fill(out []byte) {
	if !s.active.Load() || s.driver.pause.Signaled() {
		for i := range out {
			out[i] = 0
		}
		return
	}

	n, ok := s.q.TryFill(out)
	if !ok || n == 0 {
		// Contention or underrun; silence is already written.
		return
	}

	if gain := s.Volume(); gain != 1 {
		audio.ApplyGain(out[:n], s.format, gain)
	}

	if s.q.CollectRetired() > 0 {
		s.driver.updateRequired.Set()
	}
}

func (s *Session) QueueBuffer(id uintptr, pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("queue buffer: %w", backend.ErrClosed)
	}
	frames := uint64(audio.FrameCount(s.format, s.channels, len(pcm)))
	s.q.Push(id, pcm, frames)

	if s.active.Load() {
		return s.ensureStarted()
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

func (s *Session) ensureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil || s.device.IsStarted() {
		return nil
	}
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	return nil
}

func (s *Session) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("start: %w", backend.ErrClosed)
	}
	s.active.Store(true)
	return s.ensureStarted()
}

// Stop zeroes the software gain before the native stop so the last
// rendered period cannot click.
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
	if s.device == nil || !s.device.IsStarted() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("stop device: %w", err)
	}
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

// Update is a cheap poll on this backend; retirement already happened
// on the audio thread.
func (s *Session) Update() bool {
	return s.q.CollectRetired() > 0
}

func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.active.Store(false)

	s.mu.Lock()
	if s.device != nil {
		if s.device.IsStarted() {
			if err := s.device.Stop(); err != nil {
				log.Printf("miniaudio session %s: stop: %v", s.id, err)
			}
		}
		s.device.Uninit()
		s.device = nil
	}
	s.mu.Unlock()

	s.driver.unregister(s.id)
	return nil
}

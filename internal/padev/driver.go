// ABOUTME: Blocking-write backend over the portaudio bindings
// ABOUTME: Per-session feeder goroutines write buffers and retire them
package padev

import (
	"fmt"
	"log"
	"sync"

	"github.com/audiobridge/audiobridge-go/internal/host"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
)

// portaudio.Initialize is process-global, so every driver (and any
// other component touching portaudio) shares one refcounted handle.
var paHost = host.NewSubsystem("portaudio", portaudio.Initialize, func() {
	if err := portaudio.Terminate(); err != nil {
		log.Printf("portaudio terminate: %v", err)
	}
})

// SurroundPolicy decides what a failed default-device query means for
// surround support. See the miniaudio backend for the rationale.
type SurroundPolicy int

const (
	SurroundFailOpen SurroundPolicy = iota
	SurroundFailClosed
)

// Options configures a portaudio driver.
type Options struct {
	SurroundPolicy SurroundPolicy
}

// Driver owns the portaudio runtime reference and the set of sessions.
// Sessions feed the device through blocking writes on their own
// goroutine and raise the drain signal directly, so the driver runs no
// update loop of its own.
type Driver struct {
	mu       sync.Mutex
	refs     int
	sessions map[uuid.UUID]*Session

	updateRequired *backend.Flag
	pause          *backend.Flag
	policy         SurroundPolicy

	surroundOnce sync.Once
	surround     bool
}

// NewDriver creates a closed portaudio driver.
func NewDriver(opts Options) *Driver {
	return &Driver{
		sessions:       make(map[uuid.UUID]*Session),
		updateRequired: backend.NewFlag(),
		pause:          backend.NewFlag(),
		policy:         opts.SurroundPolicy,
	}
}

func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs == 0 {
		if err := paHost.Acquire(); err != nil {
			return fmt.Errorf("%w: %v", backend.ErrInitialization, err)
		}
	}
	d.refs++
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	if d.refs == 0 {
		d.mu.Unlock()
		return nil
	}
	d.refs--
	if d.refs > 0 {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	for _, s := range d.snapshot() {
		_ = s.Close()
	}
	paHost.Release()
	return nil
}

func (d *Driver) OpenDeviceSession(dir audio.Direction, memory backend.MemoryAccessor,
	format audio.SampleFormat, sampleRate, channelCount int, volume float32) (backend.Session, error) {

	d.mu.Lock()
	open := d.refs > 0
	d.mu.Unlock()
	if !open {
		return nil, fmt.Errorf("open session: %w", backend.ErrClosed)
	}

	sampleRate, channelCount, err := backend.Negotiate(d, dir, format, sampleRate, channelCount)
	if err != nil {
		return nil, err
	}

	s := newSession(d, memory, format, sampleRate, channelCount, volume)
	if err := s.openStream(); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrDeviceOpen, err)
	}
	s.startFeeder()

	if err := d.register(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// register adds the session to the map, re-checking the refcount so a
// driver closed during session construction cannot end up with a live
// session on a released native context.
func (d *Driver) register(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return fmt.Errorf("open session: %w", backend.ErrClosed)
	}
	d.sessions[s.id] = s
	return nil
}

func (d *Driver) UpdateRequiredFlag() *backend.Flag { return d.updateRequired }

func (d *Driver) PauseFlag() *backend.Flag { return d.pause }

func (d *Driver) SupportsDirection(dir audio.Direction) bool {
	return dir == audio.DirectionOutput
}

func (d *Driver) SupportsSampleFormat(f audio.SampleFormat) bool {
	switch f {
	case audio.FormatS16, audio.FormatS32, audio.FormatF32:
		return true
	}
	return false
}

func (d *Driver) SupportsSampleRate(rate int) bool { return rate > 0 }

func (d *Driver) SupportsChannelCount(n int) bool {
	switch n {
	case 1, 2:
		return true
	case 6:
		d.surroundOnce.Do(func() { d.surround = probeSurround(d.policy) })
		return d.surround
	}
	return false
}

func (d *Driver) snapshot() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

func (d *Driver) unregister(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, id)
}

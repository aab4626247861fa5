// ABOUTME: Null audio backend discarding everything it is asked to play
// ABOUTME: Serves headless hosts and exercises the full driver contract
package nulldev

import (
	"fmt"
	"sync"
	"time"

	"github.com/audiobridge/audiobridge-go/internal/host"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
)

// Options configures a null driver.
type Options struct {
	// UpdateInterval overrides the update-loop tick period. Zero keeps
	// the default; tests pass a long interval to drive updates by hand.
	UpdateInterval time.Duration
}

// Driver is the null backend: sessions accept buffers normally and
// every pending buffer retires on the next update tick, as if played
// instantly. The full driver lifecycle, signals and update loop run the
// same as on a real backend.
type Driver struct {
	mu       sync.Mutex
	refs     int
	sessions map[uuid.UUID]*Session
	stop     chan struct{}
	done     chan struct{}

	sub            *host.Subsystem
	updateRequired *backend.Flag
	pause          *backend.Flag
	interval       time.Duration
}

// IsSupported reports whether the null backend is usable. It always is.
func IsSupported() bool { return true }

// NewDriver creates a closed null driver.
func NewDriver(opts Options) *Driver {
	interval := opts.UpdateInterval
	if interval == 0 {
		interval = backend.DefaultUpdateInterval
	}
	return &Driver{
		sessions:       make(map[uuid.UUID]*Session),
		sub:            host.NewSubsystem("null audio", func() error { return nil }, nil),
		updateRequired: backend.NewFlag(),
		pause:          backend.NewFlag(),
		interval:       interval,
	}
}

// Open takes one reference on the driver; the first reference acquires
// the host subsystem and starts the update loop.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs == 0 {
		if err := d.sub.Acquire(); err != nil {
			return fmt.Errorf("%w: %v", backend.ErrInitialization, err)
		}
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.updateLoop(d.stop, d.done)
	}
	d.refs++
	return nil
}

// Close drops one reference; the last one stops the update loop,
// disposes every session and releases the host subsystem. Closing a
// closed driver is a no-op.
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
	stop, done := d.stop, d.done
	d.mu.Unlock()

	close(stop)
	<-done

	for _, s := range d.snapshot() {
		_ = s.Close()
	}
	d.sub.Release()
	return nil
}

// OpenDeviceSession negotiates and registers a new output session.
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

// UpdateRequiredFlag returns the edge-triggered drain signal.
func (d *Driver) UpdateRequiredFlag() *backend.Flag { return d.updateRequired }

// PauseFlag returns the level-triggered pause signal.
func (d *Driver) PauseFlag() *backend.Flag { return d.pause }

func (d *Driver) SupportsDirection(dir audio.Direction) bool {
	return dir == audio.DirectionOutput
}

func (d *Driver) SupportsSampleFormat(f audio.SampleFormat) bool {
	switch f {
	case audio.FormatS8, audio.FormatS16, audio.FormatS32, audio.FormatF32:
		return true
	}
	return false
}

func (d *Driver) SupportsSampleRate(rate int) bool { return rate > 0 }

func (d *Driver) SupportsChannelCount(n int) bool {
	return n == 1 || n == 2 || n == 6
}

func (d *Driver) updateLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if d.pause.Signaled() {
				continue
			}
			updated := false
			for _, s := range d.snapshot() {
				if s.Update() {
					updated = true
				}
			}
			if updated {
				d.updateRequired.Set()
			}
		}
	}
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

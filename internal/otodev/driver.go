// ABOUTME: Push-queue backend over the oto playback library
// ABOUTME: Driver update loop reconciles retirement for every session
package otodev

import (
	"fmt"
	"sync"
	"time"

	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/google/uuid"
)

// Options configures an oto driver.
type Options struct {
	// UpdateInterval overrides the update-loop tick period.
	UpdateInterval time.Duration
}

// Driver owns the shared oto context reference and the set of sessions
// playing through it. Each session is an independent oto player pulling
// from that session's pending queue; the driver's background loop
// reconciles which buffers the pull has fully consumed and raises the
// drain signal.
type Driver struct {
	mu       sync.Mutex
	refs     int
	sessions map[uuid.UUID]*Session
	stop     chan struct{}
	done     chan struct{}

	updateRequired *backend.Flag
	pause          *backend.Flag
	interval       time.Duration
}

// NewDriver creates a closed oto driver.
func NewDriver(opts Options) *Driver {
	interval := opts.UpdateInterval
	if interval == 0 {
		interval = backend.DefaultUpdateInterval
	}
	return &Driver{
		sessions:       make(map[uuid.UUID]*Session),
		updateRequired: backend.NewFlag(),
		pause:          backend.NewFlag(),
		interval:       interval,
	}
}

func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs == 0 {
		if err := procHost.Acquire(); err != nil {
			return fmt.Errorf("%w: %v", backend.ErrInitialization, err)
		}
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.updateLoop(d.stop, d.done)
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
	stop, done := d.stop, d.done
	d.mu.Unlock()

	close(stop)
	<-done

	for _, s := range d.snapshot() {
		_ = s.Close()
	}
	procHost.Release()
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

	s := newSession(d, memory, format, sampleRate, channelCount)
	s.player = procCtx.NewPlayer(s)
	if err := s.SetVolume(volume); err != nil {
		return nil, err
	}

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

// The shared context is fixed at 16-bit 48kHz stereo, and oto does no
// format conversion, so that is the one format this backend serves.
func (d *Driver) SupportsSampleFormat(f audio.SampleFormat) bool {
	return f == audio.FormatS16
}

func (d *Driver) SupportsSampleRate(rate int) bool {
	return rate == backend.DefaultSampleRate
}

func (d *Driver) SupportsChannelCount(n int) bool {
	return n == backend.DefaultChannelCount
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

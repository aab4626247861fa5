// ABOUTME: Pull-callback backend over the malgo (miniaudio) bindings
// ABOUTME: Sessions retire buffers inline on the native audio thread
package malgodev

import (
	"fmt"
	"sync"

	"github.com/audiobridge/audiobridge-go/internal/host"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

// SurroundPolicy decides what a failed surround capability probe means.
type SurroundPolicy int

const (
	// SurroundFailOpen treats a failed probe query as "surround is
	// available", so a benign query error never silently disables the
	// feature. Riskier but the historical behavior of this engine.
	SurroundFailOpen SurroundPolicy = iota

	// SurroundFailClosed treats a failed probe query as "stereo only".
	SurroundFailClosed
)

// Options configures a miniaudio driver.
type Options struct {
	SurroundPolicy SurroundPolicy
}

// Driver owns a miniaudio context and the sessions playing through it.
// There is no update loop: the native data callback retires buffers
// inline and raises the drain signal itself, which is the pull model of
// the backend contract.
type Driver struct {
	mu       sync.Mutex
	refs     int
	ctx      *malgo.AllocatedContext
	sessions map[uuid.UUID]*Session

	sub            *host.Subsystem
	updateRequired *backend.Flag
	pause          *backend.Flag
	policy         SurroundPolicy

	surroundOnce sync.Once
	surround     bool
}

// NewDriver creates a closed miniaudio driver.
func NewDriver(opts Options) *Driver {
	d := &Driver{
		sessions:       make(map[uuid.UUID]*Session),
		updateRequired: backend.NewFlag(),
		pause:          backend.NewFlag(),
		policy:         opts.SurroundPolicy,
	}
	d.sub = host.NewSubsystem("miniaudio", d.initContext, d.releaseContext)
	return d
}

func (d *Driver) initContext() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return err
	}
	d.ctx = ctx
	return nil
}

func (d *Driver) releaseContext() {
	if d.ctx == nil {
		return
	}
	if err := d.ctx.Uninit(); err != nil {
		// Best effort; the context memory is freed regardless.
		_ = err
	}
	d.ctx.Free()
	d.ctx = nil
}

func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs == 0 {
		if err := d.sub.Acquire(); err != nil {
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
	d.sub.Release()
	return nil
}

func (d *Driver) OpenDeviceSession(dir audio.Direction, memory backend.MemoryAccessor,
	format audio.SampleFormat, sampleRate, channelCount int, volume float32) (backend.Session, error) {

	d.mu.Lock()
	open := d.refs > 0
	ctx := d.ctx
	d.mu.Unlock()
	if !open {
		return nil, fmt.Errorf("open session: %w", backend.ErrClosed)
	}

	sampleRate, channelCount, err := backend.Negotiate(d, dir, format, sampleRate, channelCount)
	if err != nil {
		return nil, err
	}

	s := newSession(d, memory, format, sampleRate, channelCount, volume)
	if err := s.openDevice(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrDeviceOpen, err)
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

func (d *Driver) SupportsSampleFormat(f audio.SampleFormat) bool {
	switch f {
	case audio.FormatS16, audio.FormatS32, audio.FormatF32:
		return true
	}
	// miniaudio has no signed 8-bit format, only unsigned.
	return false
}

// miniaudio resamples internally, so any positive rate is serviceable.
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

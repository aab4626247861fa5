// ABOUTME: Root facade wiring the concrete backends behind one factory
// ABOUTME: Callers pick a backend kind and get the common Driver contract
//
// Package audiobridge streams time-critical PCM audio to interchangeable
// native playback backends. Callers open a Driver for a backend kind,
// open one or more Sessions from it, push PCM buffers as they are
// produced, and poll the session (or wait on the driver's drain signal)
// to learn which buffers finished playing and how many samples have
// been consumed.
//
// Four backends are built in: a null device, a push-queue engine over
// oto, a pull-callback engine over miniaudio, and a blocking-write
// engine over portaudio. All of them implement backend.Driver and
// backend.Session; callers are written against those interfaces only.
package audiobridge

import (
	"fmt"
	"time"

	"github.com/audiobridge/audiobridge-go/internal/malgodev"
	"github.com/audiobridge/audiobridge-go/internal/nulldev"
	"github.com/audiobridge/audiobridge-go/internal/otodev"
	"github.com/audiobridge/audiobridge-go/internal/padev"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
)

// Config carries the cross-backend tuning knobs. The zero value is a
// sensible default.
type Config struct {
	// UpdateInterval overrides the update-loop tick period on backends
	// that poll for retirement.
	UpdateInterval time.Duration

	// SurroundFailClosed makes a failed surround capability probe read
	// as "stereo only" instead of the default fail-open policy.
	SurroundFailClosed bool
}

// NewDriver constructs a closed driver for the given backend kind.
func NewDriver(kind backend.Kind, cfg Config) (backend.Driver, error) {
	switch kind {
	case backend.KindNull:
		return nulldev.NewDriver(nulldev.Options{UpdateInterval: cfg.UpdateInterval}), nil
	case backend.KindOto:
		return otodev.NewDriver(otodev.Options{UpdateInterval: cfg.UpdateInterval}), nil
	case backend.KindMiniaudio:
		policy := malgodev.SurroundFailOpen
		if cfg.SurroundFailClosed {
			policy = malgodev.SurroundFailClosed
		}
		return malgodev.NewDriver(malgodev.Options{SurroundPolicy: policy}), nil
	case backend.KindPortAudio:
		policy := padev.SurroundFailOpen
		if cfg.SurroundFailClosed {
			policy = padev.SurroundFailClosed
		}
		return padev.NewDriver(padev.Options{SurroundPolicy: policy}), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %v", kind)
	}
}

// Open constructs and opens a driver in one step.
func Open(kind backend.Kind, cfg Config) (backend.Driver, error) {
	d, err := NewDriver(kind, cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d, nil
}

// IsSupported probes whether a backend kind is usable on this host
// without leaving side effects.
func IsSupported(kind backend.Kind) bool {
	switch kind {
	case backend.KindNull:
		return nulldev.IsSupported()
	case backend.KindOto:
		return otodev.IsSupported()
	case backend.KindMiniaudio:
		return malgodev.IsSupported()
	case backend.KindPortAudio:
		return padev.IsSupported()
	default:
		return false
	}
}

// Kinds lists every built-in backend kind, null last since it is the
// fallback of choice.
func Kinds() []backend.Kind {
	return []backend.Kind{
		backend.KindOto,
		backend.KindMiniaudio,
		backend.KindPortAudio,
		backend.KindNull,
	}
}

// FirstSupported returns the first usable backend kind, falling back to
// the null device, which is always usable.
func FirstSupported() backend.Kind {
	for _, k := range Kinds() {
		if IsSupported(k) {
			return k
		}
	}
	return backend.KindNull
}

// KindByName resolves a backend registry name, for CLI flags.
func KindByName(name string) (backend.Kind, error) {
	for _, k := range Kinds() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

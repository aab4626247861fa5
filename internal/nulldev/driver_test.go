// ABOUTME: Tests for the null backend driver and session
// ABOUTME: End-to-end retirement accounting and lifecycle idempotence
package nulldev

import (
	"errors"
	"testing"
	"time"

	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
)

// manual returns an open driver whose update loop ticks far too slowly
// to interfere, so tests drive session updates by hand.
func manual(t *testing.T) *Driver {
	t.Helper()
	d := NewDriver(Options{UpdateInterval: time.Hour})
	if err := d.Open(); err != nil {
		t.Fatalf("open driver: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestEndToEndPlayedSampleCount(t *testing.T) {
	d := manual(t)

	s, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 48000, 2, 1)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Three buffers of 480 stereo s16 frames each
	pcm := make([]byte, 480*audio.FrameSize(audio.FormatS16, 2))
	for id := uintptr(1); id <= 3; id++ {
		if err := s.QueueBuffer(id, pcm); err != nil {
			t.Fatalf("queue buffer %d: %v", id, err)
		}
	}

	if s.WasBufferConsumed(1) {
		t.Error("buffer 1 still pending, must not read as consumed")
	}

	if !s.Update() {
		t.Error("update with pending buffers must report retirement")
	}
	if s.Update() {
		t.Error("second update must not retire anything")
	}

	if got := s.PlayedSampleCount(); got != 1440 {
		t.Errorf("expected exactly 1440 played frames, got %d", got)
	}
	if !s.WasBufferConsumed(3) {
		t.Error("all buffers retired, 3 must read as consumed")
	}
	if s.QueuedBufferCount() != 0 {
		t.Errorf("expected empty queue, got %d", s.QueuedBufferCount())
	}
}

func TestStoppedSessionDoesNotAdvance(t *testing.T) {
	d := manual(t)

	s, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.QueueBuffer(1, make([]byte, 1920)); err != nil {
		t.Fatal(err)
	}
	if s.Update() {
		t.Error("stopped session retired a buffer")
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.Update() {
		t.Error("started session failed to retire")
	}
}

func TestSessionNegotiation(t *testing.T) {
	d := manual(t)

	if _, err := d.OpenDeviceSession(audio.DirectionInput, nil, audio.FormatS16, 0, 0, 1); !errors.Is(err, backend.ErrUnsupportedDirection) {
		t.Errorf("input session: expected ErrUnsupportedDirection, got %v", err)
	}
	if _, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 4, 1); !errors.Is(err, backend.ErrUnsupportedChannelCount) {
		t.Errorf("4-channel session: expected ErrUnsupportedChannelCount, got %v", err)
	}
	if _, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatNone, 0, 0, 1); !errors.Is(err, backend.ErrUnsupportedFormat) {
		t.Errorf("invalid format: expected ErrUnsupportedFormat, got %v", err)
	}

	// Surround is fine on the null device
	if _, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 6, 1); err != nil {
		t.Errorf("surround session failed: %v", err)
	}
}

func TestDriverRefCountingAndIdempotentClose(t *testing.T) {
	d := NewDriver(Options{UpdateInterval: time.Hour})

	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}

	// One close leaves the driver open
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1); err != nil {
		t.Errorf("driver should still be open after one close: %v", err)
	}

	// Second close tears down, third is a no-op
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("closed driver must reject sessions, got %v", err)
	}
}

func TestRegistrationAfterCloseRejected(t *testing.T) {
	d := NewDriver(Options{UpdateInterval: time.Hour})
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}

	// A close can land between negotiation and registration; the
	// late-registering session must be rejected, not leaked into a
	// driver whose native context is already gone.
	s := newSession(d, nil, audio.FormatS16, 48000, 2, 1)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	if err := d.register(s); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("closed driver accepted a session, err=%v", err)
	}
	if len(d.snapshot()) != 0 {
		t.Error("closed driver must not hold sessions")
	}
}

func TestSessionCloseIsIdempotentAndDeregisters(t *testing.T) {
	d := manual(t)

	s, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.snapshot()) != 1 {
		t.Fatal("session not registered")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(d.snapshot()) != 0 {
		t.Error("session not deregistered on close")
	}

	if err := s.QueueBuffer(1, make([]byte, 4)); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("closed session must reject buffers, got %v", err)
	}
}

func TestUpdateLoopRaisesDrainSignal(t *testing.T) {
	d := NewDriver(Options{UpdateInterval: time.Millisecond})
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	s, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueBuffer(1, make([]byte, 1920)); err != nil {
		t.Fatal(err)
	}

	if !d.UpdateRequiredFlag().Wait(time.Second) {
		t.Fatal("update loop never raised the drain signal")
	}
	d.UpdateRequiredFlag().Clear()

	if got := s.PlayedSampleCount(); got != 480 {
		t.Errorf("expected 480 frames after loop retirement, got %d", got)
	}
}

func TestPauseGatesUpdateLoop(t *testing.T) {
	d := NewDriver(Options{UpdateInterval: time.Millisecond})
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	d.PauseFlag().Set()

	s, err := d.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.QueueBuffer(1, make([]byte, 1920)); err != nil {
		t.Fatal(err)
	}

	if d.UpdateRequiredFlag().Wait(50 * time.Millisecond) {
		t.Error("paused driver advanced a session")
	}

	d.PauseFlag().Clear()
	if !d.UpdateRequiredFlag().Wait(time.Second) {
		t.Error("unpaused driver never advanced")
	}
}

// ABOUTME: Cross-thread signal flags exposed by drivers
// ABOUTME: Manual-reset events with wait-with-timeout semantics
package backend

import (
	"sync"
	"time"
)

// Flag is a manual-reset signal shared between a driver's background
// machinery and the caller's scheduling loop. Used both edge-triggered
// ("buffers retired, drain now", cleared by the caller) and
// level-triggered ("playback paused", cleared by whoever paused).
type Flag struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewFlag returns a cleared flag.
func NewFlag() *Flag {
	return &Flag{ch: make(chan struct{})}
}

// Set raises the flag and wakes every waiter. Idempotent.
func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.ch)
	}
}

// Clear lowers the flag. Idempotent.
func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		f.set = false
		f.ch = make(chan struct{})
	}
}

// Signaled reports whether the flag is currently raised.
func (f *Flag) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Wait blocks until the flag is raised or the timeout elapses,
// reporting whether it was raised. A negative timeout waits forever.
func (f *Flag) Wait(timeout time.Duration) bool {
	f.mu.Lock()
	if f.set {
		f.mu.Unlock()
		return true
	}
	ch := f.ch
	f.mu.Unlock()

	if timeout < 0 {
		<-ch
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

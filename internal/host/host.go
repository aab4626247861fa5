// ABOUTME: Reference-counted handle for process-wide native facilities
// ABOUTME: First acquire runs real init, last release runs real teardown
package host

import (
	"fmt"
	"log"
	"sync"
)

// Subsystem reference-counts a native facility that must be initialized
// exactly once per process no matter how many independent components
// (audio drivers, windowing, input) depend on it. It is an explicit
// value handed to each dependent component rather than a hidden global,
// so the shared lifetime shows up in constructor signatures.
type Subsystem struct {
	mu       sync.Mutex
	refs     int
	name     string
	init     func() error
	teardown func()
}

// NewSubsystem wraps an init/teardown pair. teardown may be nil.
func NewSubsystem(name string, init func() error, teardown func()) *Subsystem {
	return &Subsystem{name: name, init: init, teardown: teardown}
}

// Acquire takes one reference. The first reference runs the real
// initialization; if that fails no reference is taken.
func (s *Subsystem) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		if err := s.init(); err != nil {
			return fmt.Errorf("%s subsystem init: %w", s.name, err)
		}
		log.Printf("%s subsystem initialized", s.name)
	}
	s.refs++
	return nil
}

// Release drops one reference; the last one runs the real teardown.
// Releasing an unreferenced subsystem is a safe no-op.
func (s *Subsystem) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		if s.teardown != nil {
			s.teardown()
		}
		log.Printf("%s subsystem released", s.name)
	}
}

// Refs returns the current reference count.
func (s *Subsystem) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

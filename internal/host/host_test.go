// ABOUTME: Tests for the reference-counted subsystem handle
// ABOUTME: Covers init-once, teardown-at-zero and over-release
package host

import (
	"errors"
	"sync"
	"testing"
)

func TestAcquireReleaseCounting(t *testing.T) {
	inits, teardowns := 0, 0
	s := NewSubsystem("test",
		func() error { inits++; return nil },
		func() { teardowns++ })

	// Two acquires, one release: still initialized
	if err := s.Acquire(); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := s.Acquire(); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	s.Release()

	if inits != 1 {
		t.Errorf("expected 1 init, got %d", inits)
	}
	if teardowns != 0 {
		t.Errorf("expected no teardown yet, got %d", teardowns)
	}

	// Second release tears down
	s.Release()
	if teardowns != 1 {
		t.Errorf("expected 1 teardown, got %d", teardowns)
	}

	// Third release is a safe no-op
	s.Release()
	if teardowns != 1 {
		t.Errorf("over-release ran teardown again: %d", teardowns)
	}
}

func TestReinitializeAfterTeardown(t *testing.T) {
	inits := 0
	s := NewSubsystem("test", func() error { inits++; return nil }, nil)

	if err := s.Acquire(); err != nil {
		t.Fatal(err)
	}
	s.Release()
	if err := s.Acquire(); err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	if inits != 2 {
		t.Errorf("expected re-init after full release, got %d inits", inits)
	}
}

func TestAcquireFailureTakesNoReference(t *testing.T) {
	fail := errors.New("no device")
	s := NewSubsystem("test", func() error { return fail }, nil)

	err := s.Acquire()
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped init error, got %v", err)
	}
	if s.Refs() != 0 {
		t.Errorf("failed acquire must not take a reference, refs=%d", s.Refs())
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	inits := 0
	s := NewSubsystem("test", func() error { inits++; return nil }, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Acquire(); err != nil {
				t.Error(err)
				return
			}
			s.Release()
		}()
	}
	wg.Wait()

	if s.Refs() != 0 {
		t.Errorf("expected balanced refs, got %d", s.Refs())
	}
}

// ABOUTME: Tests for the buffer-queue state machine
// ABOUTME: Covers FIFO retirement, sample accounting and concurrency
package bufq

import (
	"bytes"
	"sync"
	"testing"
)

func TestFIFORetirementOrder(t *testing.T) {
	q := New()
	q.Push(1, []byte{1, 1}, 1)
	q.Push(2, []byte{2, 2}, 1)
	q.Push(3, []byte{3, 3}, 1)

	out := make([]byte, 6)
	if n := q.Fill(out); n != 6 {
		t.Fatalf("expected 6 data bytes, got %d", n)
	}
	if !bytes.Equal(out, []byte{1, 1, 2, 2, 3, 3}) {
		t.Errorf("fill order broke submission order: %v", out)
	}

	if retired := q.CollectRetired(); retired != 3 {
		t.Errorf("expected 3 retirements, got %d", retired)
	}
	if retired := q.CollectRetired(); retired != 0 {
		t.Errorf("retirement must not duplicate, got %d extra", retired)
	}
}

func TestFillCrossesRecordBoundaries(t *testing.T) {
	q := New()
	q.Push(1, []byte{1, 2, 3, 4}, 1)
	q.Push(2, []byte{5, 6, 7, 8}, 1)

	out := make([]byte, 3)

	q.Fill(out)
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("first fill: %v", out)
	}
	if q.CollectRetired() != 0 {
		t.Error("partially consumed head must not retire")
	}

	q.Fill(out)
	if !bytes.Equal(out, []byte{4, 5, 6}) {
		t.Errorf("second fill: %v", out)
	}
	if q.CollectRetired() != 1 {
		t.Error("fully consumed head must retire")
	}

	q.Fill(out)
	if !bytes.Equal(out, []byte{7, 8, 0}) {
		t.Errorf("third fill should zero-pad the shortfall: %v", out)
	}
	if q.CollectRetired() != 1 {
		t.Error("second record must retire")
	}
}

func TestFillUnderrunIsSilence(t *testing.T) {
	q := New()
	out := []byte{9, 9, 9, 9}

	if n := q.Fill(out); n != 0 {
		t.Errorf("expected 0 data bytes on empty queue, got %d", n)
	}
	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Errorf("underrun must produce silence, got %v", out)
	}
}

func TestPlayedSamplesExact(t *testing.T) {
	// Three buffers of 480 frames each: counter must read exactly 1440.
	q := New()
	for id := uintptr(1); id <= 3; id++ {
		q.Push(id, make([]byte, 480*4), 480)
	}

	out := make([]byte, 480*4*3)
	q.Fill(out)
	q.CollectRetired()

	if got := q.PlayedSamples(); got != 1440 {
		t.Errorf("expected 1440 played frames, got %d", got)
	}
}

func TestWasConsumed(t *testing.T) {
	q := New()

	if !q.WasConsumed(42) {
		t.Error("empty queue: everything counts as consumed")
	}

	q.Push(1, []byte{1}, 1)
	q.Push(2, []byte{2}, 1)

	if q.WasConsumed(1) {
		t.Error("oldest pending buffer must not read as consumed")
	}
	if !q.WasConsumed(2) {
		t.Error("non-head buffer reads as consumed by contract")
	}

	out := make([]byte, 1)
	q.Fill(out)
	q.CollectRetired()

	if !q.WasConsumed(1) {
		t.Error("retired buffer must read as consumed")
	}
	if q.WasConsumed(2) {
		t.Error("buffer 2 is now the oldest pending one")
	}
}

func TestRetireHeadOrderViolationPanics(t *testing.T) {
	q := New()
	q.Push(1, nil, 10)
	q.Push(2, nil, 10)

	defer func() {
		if recover() == nil {
			t.Error("out-of-order retirement must panic")
		}
	}()
	q.RetireHead(2)
}

func TestRetireHeadAndAll(t *testing.T) {
	q := New()
	q.Push(1, nil, 100)
	q.Push(2, nil, 200)
	q.Push(3, nil, 300)

	q.RetireHead(1)
	if got := q.PlayedSamples(); got != 100 {
		t.Errorf("expected 100 after head retirement, got %d", got)
	}

	if n := q.RetireAll(); n != 2 {
		t.Errorf("expected 2 remaining records, got %d", n)
	}
	if got := q.PlayedSamples(); got != 600 {
		t.Errorf("expected 600 after retiring all, got %d", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty, len=%d", q.Len())
	}
}

func TestTryFillUnderContention(t *testing.T) {
	q := New()
	q.Push(1, []byte{1, 2, 3, 4}, 1)

	q.mu.Lock()
	out := []byte{9, 9}
	n, ok := q.TryFill(out)
	q.mu.Unlock()

	if ok || n != 0 {
		t.Errorf("contended TryFill must back off, got n=%d ok=%v", n, ok)
	}
	if !bytes.Equal(out, []byte{0, 0}) {
		t.Errorf("contended TryFill must emit silence, got %v", out)
	}

	// Uncontended it behaves like Fill
	n, ok = q.TryFill(out)
	if !ok || n != 2 || !bytes.Equal(out, []byte{1, 2}) {
		t.Errorf("uncontended TryFill: n=%d ok=%v out=%v", n, ok, out)
	}
}

func TestPlayedSamplesMonotonicUnderConcurrency(t *testing.T) {
	q := New()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	// Producer/consumer pair
	go func() {
		defer wg.Done()
		out := make([]byte, 64)
		for i := uintptr(1); i <= 200; i++ {
			q.Push(i, make([]byte, 32), 8)
			q.Fill(out)
			q.CollectRetired()
		}
		close(stop)
	}()

	// Concurrent reader checks monotonicity
	go func() {
		defer wg.Done()
		var last uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			got := q.PlayedSamples()
			if got < last {
				t.Errorf("played counter went backwards: %d < %d", got, last)
				return
			}
			last = got
		}
	}()

	wg.Wait()

	if got := q.PlayedSamples(); got != 200*8 {
		t.Errorf("expected %d frames, got %d", 200*8, got)
	}
}

// ABOUTME: FIFO buffer-queue state machine shared by every backend
// ABOUTME: Tracks in-flight PCM buffers and played-sample accounting
package bufq

import "sync"

// Record binds a caller-supplied buffer identity to its PCM payload and
// the sample-frame count credited when it retires.
type Record struct {
	ID      uintptr
	Frames  uint64
	Payload []byte
}

type pending struct {
	rec      Record
	consumed int // payload bytes handed to the native layer
}

// Queue is the per-session buffer FIFO. Buffers retire strictly in
// submission order; the played counter is monotonic and updated under
// the same lock as the queue itself, so a reader can never observe a
// count interleaved with a partial pop.
//
// Pull-consumption backends drain bytes with Fill (or TryFill from a
// native callback) and retire with CollectRetired. Backends that play
// buffers wholesale use Head and RetireHead instead.
type Queue struct {
	mu      sync.Mutex
	pending []*pending
	played  uint64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a buffer record at the tail.
func (q *Queue) Push(id uintptr, payload []byte, frames uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &pending{rec: Record{ID: id, Frames: frames, Payload: payload}})
}

// Fill copies queued PCM into p in FIFO order, advancing the
// consumption cursor across record boundaries, and zero-fills any
// shortfall so an underrun plays silence instead of stale data.
// Returns the number of real data bytes copied.
func (q *Queue) Fill(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fillLocked(p)
}

// TryFill is Fill for native audio callbacks that must never block: if
// the lock is contended it writes silence and reports false.
func (q *Queue) TryFill(p []byte) (int, bool) {
	if !q.mu.TryLock() {
		for i := range p {
			p[i] = 0
		}
		return 0, false
	}
	defer q.mu.Unlock()
	return q.fillLocked(p), true
}

func (q *Queue) fillLocked(p []byte) int {
	n := 0
	for _, pd := range q.pending {
		if n == len(p) {
			break
		}
		c := copy(p[n:], pd.rec.Payload[pd.consumed:])
		pd.consumed += c
		n += c
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return n
}

// CollectRetired pops every leading record whose payload has been fully
// consumed, credits its frames to the played counter, and returns how
// many records retired.
func (q *Queue) CollectRetired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	retired := 0
	for len(q.pending) > 0 {
		head := q.pending[0]
		if head.consumed < len(head.rec.Payload) {
			break
		}
		q.played += head.rec.Frames
		q.pending[0] = nil
		q.pending = q.pending[1:]
		retired++
	}
	return retired
}

// Head returns a copy of the oldest pending record.
func (q *Queue) Head() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Record{}, false
	}
	return q.pending[0].rec, true
}

// RetireHead retires the oldest record outright, crediting its frames.
// The expected identity guards the FIFO discipline between the native
// layer and this queue; a mismatch means the two disagree about
// playback order, which is a protocol violation, not a recoverable
// condition.
func (q *Queue) RetireHead(expect uintptr) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		panic("bufq: retire on empty queue")
	}
	head := q.pending[0]
	if head.rec.ID != expect {
		panic("bufq: buffer retired out of FIFO order")
	}
	q.played += head.rec.Frames
	q.pending[0] = nil
	q.pending = q.pending[1:]
}

// RetireAll retires every pending record and returns how many there were.
func (q *Queue) RetireAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	retired := len(q.pending)
	for _, pd := range q.pending {
		q.played += pd.rec.Frames
	}
	q.pending = nil
	return retired
}

// WasConsumed reports whether the identified buffer is safe to reclaim:
// true once it is no longer the oldest pending record, or when nothing
// is pending at all.
func (q *Queue) WasConsumed(id uintptr) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return true
	}
	return q.pending[0].rec.ID != id
}

// PlayedSamples returns the monotonic count of retired sample frames.
func (q *Queue) PlayedSamples() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.played
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Package psevent implements the fixed-capacity event ring described in
// spec.md §4.7, grounded on the ring/channel drop-oldest-on-full pattern
// the teacher uses for its WebSocket message buffers in
// internal/network/websocket.go (readMessages' "channel full, drop
// oldest" branch).
package psevent

import (
	"protoscript/internal/psgc"
	"protoscript/internal/psvalue"
)

// DefaultCapacity mirrors the original's fixed ring size when the
// embedder doesn't override it.
const DefaultCapacity = 256

// Queue is a single-threaded fixed-capacity ring of Values. Push on a
// full queue drops the oldest entry (head advances) before storing the
// new one, per spec.md §4.7; it never blocks or allocates beyond the
// initial backing array.
type Queue struct {
	buf   []psvalue.Value
	head  int
	tail  int
	count int
}

// New allocates a Queue with room for capacity entries. capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]psvalue.Value, capacity)}
}

// Cap returns the ring's fixed capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Len returns the number of queued entries.
func (q *Queue) Len() int { return q.count }

// Full reports whether the next Push will drop the oldest entry.
func (q *Queue) Full() bool { return q.count == len(q.buf) }

// Push appends value, dropping the oldest entry first if the ring is
// already full.
func (q *Queue) Push(value psvalue.Value) {
	if q.Full() {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	q.buf[q.tail] = value
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
}

// Next returns the head value and advances head, or Null with false if
// the queue is empty (spec.md §4.7: embedder-visible `Event.next()`
// returns `null` on empty).
func (q *Queue) Next() (psvalue.Value, bool) {
	if q.count == 0 {
		return psvalue.Null(), false
	}
	v := q.buf[q.head]
	q.buf[q.head] = psvalue.Undefined()
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Clear resets head/tail/count without reallocating the backing array.
func (q *Queue) Clear() {
	for i := range q.buf {
		q.buf[i] = psvalue.Undefined()
	}
	q.head = 0
	q.tail = 0
	q.count = 0
}

// GCRoots implements psgc.RootSource: every queued value is a GC root
// for as long as it sits in the ring (spec.md §2's "GC walks roots …
// event queue").
func (q *Queue) GCRoots() []psgc.Root {
	roots := make([]psgc.Root, 0, q.count)
	for i, n := 0, 0; n < q.count; i, n = (i+1)%len(q.buf), n+1 {
		idx := (q.head + i) % len(q.buf)
		roots = append(roots, psgc.Root{Type: psgc.RootValue, Ptr: q.buf[idx]})
	}
	return roots
}

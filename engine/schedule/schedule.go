// Package schedule is the timer-ordered queue of delayed controller events.
//
// Events fire in fire-time order with ties broken by insertion order. Events
// scheduled while Update is firing, including periodic re-queues, only
// become eligible on the next Update.
package schedule

import (
	"container/heap"
	"time"
)

// Event is one pending or firing entry.
type Event struct {
	Type    string
	Payload map[string]any
	FireAt  time.Duration // queue clock time
	Period  time.Duration // 0 = one-shot

	seq uint64
}

// Queue is a monotonic-clock event queue. It is not safe for concurrent use.
type Queue struct {
	now      time.Duration
	seq      uint64
	items    eventHeap
	deferred []*Event
	updating bool
}

// New returns an empty queue at clock zero.
func New() *Queue {
	return &Queue{}
}

// Now returns the queue clock.
func (q *Queue) Now() time.Duration {
	return q.now
}

// Schedule enqueues a one-shot event delay from now.
func (q *Queue) Schedule(typ string, delay time.Duration, payload map[string]any) {
	q.push(&Event{Type: typ, Payload: payload, FireAt: q.now + clamp(delay)})
}

// ScheduleEvery enqueues a periodic event first firing delay from now.
// A non-positive period makes it one-shot.
func (q *Queue) ScheduleEvery(typ string, delay, period time.Duration, payload map[string]any) {
	q.push(&Event{Type: typ, Payload: payload, FireAt: q.now + clamp(delay), Period: clamp(period)})
}

// Cancel removes every pending event of the given type, including ones
// scheduled during the current Update, and returns how many were removed.
func (q *Queue) Cancel(typ string) int {
	n := 0
	kept := q.deferred[:0]
	for _, e := range q.deferred {
		if e.Type == typ {
			n++
			continue
		}
		kept = append(kept, e)
	}
	q.deferred = kept

	items := q.items[:0]
	for _, e := range q.items {
		if e.Type == typ {
			n++
			continue
		}
		items = append(items, e)
	}
	q.items = items
	heap.Init(&q.items)
	return n
}

// Update advances the clock by elapsed and fires every event due at the new
// time, in order. It returns the number of events fired.
func (q *Queue) Update(elapsed time.Duration, fire func(Event)) int {
	q.now += clamp(elapsed)
	q.updating = true
	fired := 0
	for len(q.items) > 0 && q.items[0].FireAt <= q.now {
		e := heap.Pop(&q.items).(*Event)
		fired++
		if e.Period > 0 {
			next := *e
			next.FireAt = e.FireAt + e.Period
			q.push(&next)
		}
		fire(*e)
	}
	q.updating = false

	for _, e := range q.deferred {
		heap.Push(&q.items, e)
	}
	q.deferred = q.deferred[:0]
	return fired
}

// Pending returns a snapshot of queued events in fire order.
func (q *Queue) Pending() []Event {
	all := make(eventHeap, 0, len(q.items)+len(q.deferred))
	all = append(all, q.items...)
	all = append(all, q.deferred...)
	heap.Init(&all)
	out := make([]Event, 0, len(all))
	for all.Len() > 0 {
		out = append(out, *heap.Pop(&all).(*Event))
	}
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.items) + len(q.deferred)
}

// Reset drops every pending event and rewinds the clock.
func (q *Queue) Reset(now time.Duration) {
	q.items = nil
	q.deferred = nil
	q.now = now
}

func (q *Queue) push(e *Event) {
	q.seq++
	e.seq = q.seq
	if q.updating {
		q.deferred = append(q.deferred, e)
		return
	}
	heap.Push(&q.items, e)
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].FireAt != h[j].FireAt {
		return h[i].FireAt < h[j].FireAt
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

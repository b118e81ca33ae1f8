package sim

import (
	"cmp"

	"github.com/addrummond/heap"
)

// queuedEvent pairs an event with its insertion sequence number.
type queuedEvent struct {
	ev  Event
	seq uint64
}

// Cmp orders by timestamp, then by insertion sequence for deterministic replay.
func (a *queuedEvent) Cmp(b *queuedEvent) int {
	if c := cmp.Compare(a.ev.Timestamp(), b.ev.Timestamp()); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// EventQueue is the event engine: a min-heap keyed by (timestamp, sequence)
// that owns the simulation clock. It knows nothing about flows or policies.
// Sequence numbers are per queue, so independent simulators never interfere.
type EventQueue struct {
	events heap.Heap[queuedEvent, heap.Min]
	clock  float64
	seq    uint64
	n      int
}

// NewEventQueue creates an empty event queue with the clock at zero.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Schedule adds an event. Scheduling before the current clock is rejected
// with an OrderingError.
func (q *EventQueue) Schedule(ev Event) error {
	if ev == nil {
		panic("Schedule: event must not be nil")
	}
	if ev.Timestamp() < q.clock {
		oe := &OrderingError{Time: ev.Timestamp(), Clock: q.clock, What: string(ev.Kind()) + " event"}
		if p := eventPacket(ev); p != nil {
			oe.Flow = p.Flow
		}
		return oe
	}
	q.seq++
	heap.PushOrderable(&q.events, queuedEvent{ev: ev, seq: q.seq})
	q.n++
	return nil
}

// Next removes and returns the earliest event, advancing the clock to its timestamp.
func (q *EventQueue) Next() (Event, bool) {
	qe, ok := heap.PopOrderable(&q.events)
	if !ok {
		return nil, false
	}
	q.n--
	q.clock = qe.ev.Timestamp()
	return qe.ev, true
}

// Drop removes the earliest event without executing it or moving the clock.
// Used to discard superseded departure plans.
func (q *EventQueue) Drop() {
	if _, ok := heap.PopOrderable(&q.events); ok {
		q.n--
	}
}

// Peek returns the earliest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	qe, ok := heap.Peek(&q.events)
	if !ok {
		return nil, false
	}
	return qe.ev, true
}

// IsEmpty reports whether no events are pending.
func (q *EventQueue) IsEmpty() bool {
	return q.n == 0
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return q.n
}

// Clock returns the timestamp of the most recently popped event.
func (q *EventQueue) Clock() float64 {
	return q.clock
}

func eventPacket(ev Event) *Packet {
	switch e := ev.(type) {
	case *ArrivalEvent:
		return e.Packet
	case *DepartureEvent:
		return e.Packet
	}
	return nil
}

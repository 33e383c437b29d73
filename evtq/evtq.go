// Package evtq implements a thread-safe, mutable-key priority queue ordered
// by vrtime.Time, keyed by a dense monotonically increasing event identifier.
//
// It is built on container/heap with per-entry index bookkeeping so that
// UpdateTime and Remove can sift an existing entry in O(log n) rather than
// requiring a full re-heapify.
package evtq

import (
	"container/heap"
	"sync"

	"github.com/signalsfoundry/eventsim/vrtime"
)

// InvalidEventID is never returned by Insert.
const InvalidEventID int64 = 0

// Item is the unit stored in the queue: a caller-supplied payload ordered by
// Time, plus the bookkeeping the heap needs to support mutable-key
// operations. GetItem returns the queue's live *Item so a caller that knows
// the concrete type of Value (as evt.Manager does) can mutate it in place --
// e.g. to flip a cancellation flag on the payload -- without a second
// queue traversal.
type Item struct {
	ID    int64
	Value any
	Time  vrtime.Time

	index int // current slot in the heap, maintained by itemHeap
}

// itemHeap implements container/heap.Interface and keeps each Item's index
// field in sync with its slot so lookups by ID can sift in place.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool { return h[i].Time.LT(h[j].Time) }

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// EventQueue is a mutable-key min-priority-queue over vrtime.Time.
//
// Exactly one entry exists per live event id. All operations are total:
// absence of an id is reported via a boolean or zero-value result, never a
// panic.
type EventQueue struct {
	mu      sync.Mutex
	heap    itemHeap
	lookup  map[int64]*Item
	nextID  int64
	maxTime vrtime.Time
}

// New constructs an empty EventQueue.
func New() *EventQueue {
	return &EventQueue{
		lookup: make(map[int64]*Item),
	}
}

// Len returns the number of live entries.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// MinTime returns the Time of the least entry, or vrtime.Zero() if empty.
func (q *EventQueue) MinTime() vrtime.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return vrtime.Zero()
	}
	return q.heap[0].Time
}

// MaxTime returns the largest Time ever passed to Insert.
func (q *EventQueue) MaxTime() vrtime.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxTime
}

// Insert adds v to the queue at the given time and returns its event id
// (always >= 1). If t.Pri() == -1, the priority is replaced with the next
// internal counter value so that simultaneous-tick events inserted without
// an explicit tiebreaker retain insertion order.
func (q *EventQueue) Insert(v any, t vrtime.Time) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID

	if q.maxTime.LT(t) {
		q.maxTime = t
	}

	if t.Pri() == -1 {
		t.SetPri(q.nextID)
	}

	item := &Item{ID: id, Value: v, Time: t}
	heap.Push(&q.heap, item)
	q.lookup[id] = item
	return id
}

// Pop removes and returns the payload of the least-time entry, or nil (ok
// false) if the queue is empty.
func (q *EventQueue) Pop() (v any, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.heap).(*Item)
	delete(q.lookup, item.ID)
	return item.Value, true
}

// PopItem removes and returns the full least-time entry -- id, payload, and
// time -- or nil (ok false) if the queue is empty. Callers that need to
// report or log the dispatch time alongside the payload (as evt.Manager
// does) should use PopItem instead of Pop.
func (q *EventQueue) PopItem() (item *Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.heap).(*Item)
	delete(q.lookup, it.ID)
	return it, true
}

// UpdateTime rewrites an entry's time and restores the heap property. If id
// is absent, this is a no-op.
func (q *EventQueue) UpdateTime(id int64, t vrtime.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.lookup[id]
	if !ok {
		return
	}
	item.Time = t
	heap.Fix(&q.heap, item.index)
}

// GetItem returns the live entry for id, or nil if absent. The returned
// *Item is the queue's live entry: mutating its Value payload (e.g. the
// Cancel field of an evt.Event) is visible to the queue without a further
// call.
func (q *EventQueue) GetItem(id int64) *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lookup[id]
}

// Remove deletes the entry for id from the queue, reporting whether it was
// present. It uses container/heap.Remove, which swaps the target to the
// queue's tail and sifts to restore the heap property in O(log n) -- the
// same end result as forcing the entry's time to the minimum and popping it,
// without the extra Time mutation.
func (q *EventQueue) Remove(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.lookup[id]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, item.index)
	delete(q.lookup, id)
	return true
}

package evtq

import (
	"math/rand"
	"testing"

	"github.com/signalsfoundry/eventsim/vrtime"
)

func TestInsertAndLen(t *testing.T) {
	q := New()
	q.Insert("event1", vrtime.FromSeconds(1.0))
	q.Insert("event2", vrtime.FromSeconds(2.0))
	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestMinTime(t *testing.T) {
	q := New()
	t1 := vrtime.FromSeconds(1.0)
	t2 := vrtime.FromSeconds(2.0)
	q.Insert("event1", t2)
	q.Insert("event2", t1)

	if got := q.MinTime(); got.Ticks() != t1.Ticks() {
		t.Fatalf("MinTime().Ticks() = %d, want %d", got.Ticks(), t1.Ticks())
	}
}

func TestMinTimeEmpty(t *testing.T) {
	q := New()
	if got := q.MinTime(); got != vrtime.Zero() {
		t.Fatalf("MinTime() on empty queue = %v, want zero", got)
	}
}

func TestPop(t *testing.T) {
	q := New()
	q.Insert("event1", vrtime.FromSeconds(1.0))
	q.Insert("event2", vrtime.FromSeconds(2.0))

	v, ok := q.Pop()
	if !ok || v != "event1" {
		t.Fatalf("Pop() = (%v, %v), want (event1, true)", v, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after Pop = %d, want 1", q.Len())
	}
}

func TestPopEmpty(t *testing.T) {
	q := New()
	if v, ok := q.Pop(); ok || v != nil {
		t.Fatalf("Pop() on empty = (%v, %v), want (nil, false)", v, ok)
	}
}

func TestPopItem(t *testing.T) {
	q := New()
	tm := vrtime.FromSeconds(1.0)
	id := q.Insert("event1", tm)
	q.Insert("event2", vrtime.FromSeconds(2.0))

	item, ok := q.PopItem()
	if !ok {
		t.Fatalf("PopItem() ok = false, want true")
	}
	if item.ID != id {
		t.Fatalf("item.ID = %d, want %d", item.ID, id)
	}
	if item.Value != "event1" {
		t.Fatalf("item.Value = %v, want event1", item.Value)
	}
	if item.Time.Ticks() != tm.Ticks() {
		t.Fatalf("item.Time = %v, want %v", item.Time, tm)
	}
}

func TestPopItemEmpty(t *testing.T) {
	q := New()
	if item, ok := q.PopItem(); ok || item != nil {
		t.Fatalf("PopItem() on empty = (%v, %v), want (nil, false)", item, ok)
	}
}

func TestUpdateTime(t *testing.T) {
	q := New()
	t1 := vrtime.FromSeconds(1.0)
	t2 := vrtime.FromSeconds(2.0)
	id := q.Insert("event1", t1)
	q.UpdateTime(id, t2)

	if got := q.MinTime(); got.Ticks() != t2.Ticks() {
		t.Fatalf("MinTime() after UpdateTime = %d, want %d", got.Ticks(), t2.Ticks())
	}
}

func TestUpdateTimeUnknownIDIsNoop(t *testing.T) {
	q := New()
	id := q.Insert("event1", vrtime.FromSeconds(1.0))
	q.UpdateTime(id+100, vrtime.FromSeconds(99.0))
	if got := q.MinTime(); got.Ticks() != vrtime.FromSeconds(1.0).Ticks() {
		t.Fatalf("UpdateTime on unknown id mutated the queue: MinTime = %v", got)
	}
}

func TestRemove(t *testing.T) {
	q := New()
	id := q.Insert("event1", vrtime.FromSeconds(1.0))
	q.Insert("event2", vrtime.FromSeconds(2.0))

	if removed := q.Remove(id); !removed {
		t.Fatalf("Remove(id) = false, want true")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", q.Len())
	}
	if q.GetItem(id) != nil {
		t.Fatalf("GetItem(id) after Remove should be nil")
	}
}

func TestRemoveUnknownID(t *testing.T) {
	q := New()
	if q.Remove(12345) {
		t.Fatalf("Remove() on unknown id = true, want false")
	}
}

func TestGetItem(t *testing.T) {
	q := New()
	id := q.Insert("event1", vrtime.FromSeconds(1.0))

	item := q.GetItem(id)
	if item == nil {
		t.Fatalf("GetItem(id) = nil, want non-nil")
	}
	if item.Value != "event1" {
		t.Fatalf("item.Value = %v, want event1", item.Value)
	}
}

func TestGetItemUnknownID(t *testing.T) {
	q := New()
	if q.GetItem(999) != nil {
		t.Fatalf("GetItem() on unknown id should be nil")
	}
}

func TestInsertMonotoneIDs(t *testing.T) {
	q := New()
	var prev int64
	for i := 0; i < 50; i++ {
		id := q.Insert(i, vrtime.New(int64(i), 0))
		if id <= prev {
			t.Fatalf("Insert returned non-increasing id %d after %d", id, prev)
		}
		prev = id
	}
}

func TestInsertPriNegativeOneGetsMonotoneTiebreak(t *testing.T) {
	q := New()
	tm := vrtime.New(10, -1)
	id1 := q.Insert("a", tm)
	id2 := q.Insert("b", vrtime.New(10, -1))

	item1 := q.GetItem(id1)
	item2 := q.GetItem(id2)
	if item1.Time.Pri() == -1 || item2.Time.Pri() == -1 {
		t.Fatalf("pri -1 was not rewritten: %v, %v", item1.Time, item2.Time)
	}
	if !item1.Time.LT(item2.Time) {
		t.Fatalf("insertion order not preserved for simultaneous ticks: %v then %v", item1.Time, item2.Time)
	}
}

// TestHeapPropertyUnderRandomOps exercises the invariant from spec.md §8:
// after any sequence of insert/pop/updateTime/remove, the root's time equals
// the minimum over all live entries.
func TestHeapPropertyUnderRandomOps(t *testing.T) {
	q := New()
	rng := rand.New(rand.NewSource(1))
	live := map[int64]vrtime.Time{}

	minLive := func() (vrtime.Time, bool) {
		var best vrtime.Time
		found := false
		for _, tm := range live {
			if !found || tm.LT(best) {
				best = tm
				found = true
			}
		}
		return best, found
	}

	for i := 0; i < 2000; i++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			tm := vrtime.New(rng.Int63n(1000), rng.Int63n(5))
			id := q.Insert(i, tm)
			live[id] = tm
		case op == 1:
			var target int64
			for k := range live {
				target = k
				break
			}
			tm := vrtime.New(rng.Int63n(1000), rng.Int63n(5))
			q.UpdateTime(target, tm)
			live[target] = tm
		case op == 2:
			var target int64
			for k := range live {
				target = k
				break
			}
			if q.Remove(target) {
				delete(live, target)
			}
		default:
			if _, ok := q.Pop(); ok {
				// remove whichever live id matches the minimum; payload
				// alone doesn't identify which id was popped, so just drop
				// the minimum entry from our shadow model.
				minTm, found := minLive()
				if found {
					for k, tm := range live {
						if tm == minTm {
							delete(live, k)
							break
						}
					}
				}
			}
		}

		if want, ok := minLive(); ok {
			if got := q.MinTime(); got != want {
				t.Fatalf("iteration %d: MinTime() = %v, want %v", i, got, want)
			}
		}
	}
}

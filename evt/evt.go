// Package evt implements the event manager: the dispatch loop that pops
// events from an evtq.EventQueue in virtual-time order and invokes their
// handlers, optionally pacing dispatch against wallclock time, suspending
// between externally-scheduled events, or stopping at a run-window limit so
// a simulation can be driven window by window.
package evt

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/eventsim/evtq"
	"github.com/signalsfoundry/eventsim/internal/logging"
	"github.com/signalsfoundry/eventsim/internal/observability"
	"github.com/signalsfoundry/eventsim/timectrl"
	"github.com/signalsfoundry/eventsim/vrtime"
)

const tracerName = "github.com/signalsfoundry/eventsim/evt"

// Handler is called by the dispatch loop to execute a scheduled event. It
// receives the owning Manager (so a handler may recursively schedule or
// cancel further events), and the opaque context/data pair supplied at
// schedule time. Handlers are not expected to return a value; a handler
// that panics is not recovered by Run -- the panic unwinds through the
// dispatch loop exactly as the reference engine lets a raised exception
// unwind, leaving the Manager's current time and event id at the failed
// event (it has already been popped).
type Handler func(m *Manager, context any, data any)

// Event is the opaque payload evtq carries for this package.
type Event struct {
	Context     any
	Data        any
	Time        vrtime.Time
	Handler     Handler
	EventID     int64
	ScheduleSeq int64 // submission order, from the manager's scheduleCounter; carried into trace spans and logs
	Cancel      bool
}

// ManagerOption configures a Manager at construction time, following the
// same functional-options pattern as the motion model and scenario state
// constructors this engine was adapted from.
type ManagerOption func(*Manager)

// WithLogger attaches a structured logger. Defaults to logging.Noop().
func WithLogger(log logging.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithMetrics attaches a Prometheus collector. Nil-safe if omitted.
func WithMetrics(metrics *observability.EngineCollector) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithTracer overrides the OpenTelemetry tracer used to span dispatched
// handlers. Defaults to otel.Tracer(tracerName).
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

// WithWallclock enables real-time pacing: Run sleeps between dispatches so
// that virtual-time deltas track wallclock deltas, using pacer to compute
// the delay. Equivalent to calling SetWallclock(true) after construction,
// plus supplying the Pacer the reference engine's _real_time_delay needs.
func WithWallclock(pacer *timectrl.Pacer) ManagerOption {
	return func(m *Manager) {
		m.pacer = pacer
		m.wallclock = true
	}
}

// WithExternal puts the manager into external-suspension mode: when the
// queue empties inside Run, the loop blocks until a concurrent Schedule
// call adds a new event, rather than returning. Equivalent to calling
// SetExternal(true) after construction.
func WithExternal(external bool) ManagerOption {
	return func(m *Manager) { m.external = external }
}

// Manager owns an event queue and a dispatch loop. A single mutex guards
// all Manager-level state (current time, run/suspend flags, the
// auto-priority counter, the schedule counter); handler invocations and
// wallclock sleeps always happen with the mutex released, so a slow handler
// cannot block a concurrent Schedule/CancelEvent/RemoveEvent call.
type Manager struct {
	mu              sync.Mutex
	queue           *evtq.EventQueue
	currentTime     vrtime.Time
	currentEventID  int64
	runFlag         bool
	external        bool
	suspended       bool
	wallclock       bool
	startWall       time.Time
	autoPri         int64
	scheduleCounter int64

	pacer  *timectrl.Pacer
	wakeCh chan struct{}

	log     logging.Logger
	metrics *observability.EngineCollector
	tracer  trace.Tracer
}

// NewManager constructs a Manager starting at virtual time zero.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		queue:           evtq.New(),
		currentTime:     vrtime.Zero(),
		autoPri:         1,
		scheduleCounter: 1,
		wakeCh:          make(chan struct{}, 1),
		log:             logging.Noop(),
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetExternal toggles external-suspension mode at runtime.
func (m *Manager) SetExternal(external bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external = external
}

// SetWallclock toggles wallclock pacing at runtime. Pacing has no effect
// unless a Pacer was supplied via WithWallclock at construction.
func (m *Manager) SetWallclock(wallclock bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallclock = wallclock
}

// CurrentTime returns the virtual time of the most recently dispatched
// event, the soak-to-limit time left by the previous Run call, or zero if
// neither has happened yet.
func (m *Manager) CurrentTime() vrtime.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// CurrentTicks is a convenience accessor equivalent to CurrentTime().Ticks().
func (m *Manager) CurrentTicks() int64 { return m.CurrentTime().Ticks() }

// CurrentSeconds is a convenience accessor equivalent to CurrentTime().Seconds().
func (m *Manager) CurrentSeconds() float64 { return m.CurrentTime().Seconds() }

// CurrentEventID returns the id of the event currently (or most recently)
// dispatched, or 0 if no Run call has dispatched anything since the last
// time Run returned.
func (m *Manager) CurrentEventID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentEventID
}

// SetTime forcibly sets the manager's notion of "now", e.g. to seed a
// simulation at a non-zero epoch before the first Schedule call.
func (m *Manager) SetTime(t vrtime.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// QueueLen reports the number of live (including cancelled-but-not-yet-
// popped) entries in the queue.
func (m *Manager) QueueLen() int { return m.queue.Len() }

// Schedule creates a new event offset from the manager's current time and
// inserts it into the queue. If offset.Pri() == 0, it is assigned the next
// value from the manager's own auto-priority counter so that independently
// scheduled simultaneous-tick events retain a deterministic submission
// order; this assignment happens under the manager's mutex, which is a
// stronger guarantee than assigning it beforehand (the reference engine
// this was ported from reads/increments its counter outside the lock) --
// it closes a window where two concurrent callers could otherwise observe
// the same "next" counter value before either commits it.
//
// The returned absolute time has offset.Pri() copied onto it verbatim,
// overriding the max-priority rule vrtime.Time.Plus would otherwise apply:
// the scheduler's chosen tiebreak always dominates.
//
// Schedule returns the new event's id (usable with CancelEvent and
// RemoveEvent) and its absolute virtual time.
func (m *Manager) Schedule(evtContext any, data any, handler Handler, offset vrtime.Time) (int64, vrtime.Time) {
	m.mu.Lock()

	if offset.Pri() == 0 {
		offset.SetPri(m.autoPri)
		m.autoPri++
	}

	absolute := m.currentTime.Plus(offset)
	absolute.SetPri(offset.Pri())

	seq := m.scheduleCounter
	m.scheduleCounter++

	ev := &Event{Context: evtContext, Data: data, Time: absolute, Handler: handler, ScheduleSeq: seq}
	id := m.queue.Insert(ev, absolute)
	ev.EventID = id

	if m.external && m.suspended && m.queue.Len() == 1 {
		m.wake()
	}

	m.mu.Unlock()

	m.metrics.IncScheduleCalls()
	m.metrics.SetQueueDepth(m.queue.Len())
	m.log.Debug(context.Background(), "scheduled event",
		logging.Int64("event_id", id),
		logging.Int64("ticks", absolute.Ticks()),
		logging.Int64("pri", absolute.Pri()),
		logging.Int64("schedule_seq", seq),
	)
	return id, absolute
}

// CancelEvent marks a pending event as cancelled: Run will skip its handler
// when popped, but the event still occupies its queue slot until then.
// CancelEvent reports whether id referred to a live event.
func (m *Manager) CancelEvent(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.queue.GetItem(id)
	if item == nil {
		return false
	}
	ev, ok := item.Value.(*Event)
	if !ok {
		return false
	}
	ev.Cancel = true
	return true
}

// RemoveEvent removes a pending event from the queue outright, freeing its
// slot immediately rather than leaving it to be skipped on pop. It reports
// whether id referred to a live event.
func (m *Manager) RemoveEvent(id int64) bool {
	m.mu.Lock()
	removed := m.queue.Remove(id)
	m.mu.Unlock()

	if removed {
		m.metrics.SetQueueDepth(m.queue.Len())
	}
	return removed
}

// Reschedule sets a pending event's absolute time to t, keeping its event
// id, and restores heap order so it dispatches at its new time. This is a
// convenience beyond the three core scheduling operations, built directly
// on evtq.UpdateTime. It reports whether id referred to a live event.
func (m *Manager) Reschedule(id int64, t vrtime.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.GetItem(id) == nil {
		return false
	}
	if t.Pri() == 0 {
		t.SetPri(m.autoPri)
		m.autoPri++
	}
	m.queue.UpdateTime(id, t)
	return true
}

// wake signals a blocked Run loop that a new event is available. Must be
// called with m.mu held. The channel is buffered with capacity 1 so a
// signal sent while nobody is listening is not lost.
func (m *Manager) wake() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// Stop requests that a running Run loop exit at its next loop-guard check.
// It takes effect when the currently dispatching handler (if any) returns.
// Stop does not itself wake a loop blocked in external suspension: per the
// reference engine, only a Schedule call's empty-to-non-empty transition
// does that.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runFlag = false
}

// Run starts the dispatch loop and drives it until (a) the queue empties
// and external-suspension is off, (b) the next queued event's time is
// strictly beyond the limitSeconds window, (c) Stop is called, or (d) ctx
// is cancelled. limitSeconds is an absolute virtual-time ceiling, converted
// with vrtime.SecondsToTicks; it is not an offset from the manager's current
// time, so a simulation driven window by window passes increasing limits.
//
// In case (b), the manager's clock is advanced to exactly the limit and the
// pending event remains queued for a subsequent Run call ("limit cut"). If
// the queue instead drains naturally before the limit, the clock is soaked
// up to the limit as well ("limit soak") so two consecutive Run windows
// compose without gaps. Run is not reentrant.
func (m *Manager) Run(ctx context.Context, limitSeconds float64) error {
	limitTicks := vrtime.SecondsToTicks(limitSeconds)

	startWall := time.Now()
	m.mu.Lock()
	m.runFlag = true
	m.startWall = startWall
	base := m.currentTime
	m.mu.Unlock()
	if m.pacer != nil {
		m.pacer.Reset(startWall, base)
	}

	first := true
	for {
		m.mu.Lock()
		if !m.runFlag {
			m.mu.Unlock()
			break
		}
		if !first && !(m.queue.Len() > 0 && m.currentTime.Ticks() < limitTicks) {
			m.mu.Unlock()
			break
		}
		first = false
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.runFlag = false
			m.mu.Unlock()
			return ctx.Err()
		default:
		}

		if err := m.runOneIteration(ctx, limitTicks); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if m.runFlag && m.currentTime.Ticks() < limitTicks {
		m.currentTime = vrtime.New(limitTicks, 0)
	}
	m.currentEventID = 0
	m.runFlag = false
	m.mu.Unlock()

	return nil
}

// runOneIteration executes one pass of the loop body described in Run's
// doc comment: peek-and-limit-check, optional wallclock sleep, pop and
// dispatch, then (if external) suspend when the queue has drained to
// empty. It returns early with an error only on context cancellation.
func (m *Manager) runOneIteration(ctx context.Context, limitTicks int64) error {
	m.mu.Lock()
	qlen := m.queue.Len()
	var nxt vrtime.Time
	if qlen > 0 {
		nxt = m.queue.MinTime()
		if limitTicks < nxt.Ticks() {
			m.currentTime = vrtime.New(limitTicks, 0)
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()

	if qlen > 0 {
		if m.wallclock && m.pacer != nil {
			m.pacer.SleepUntil(m.CurrentTime(), nxt)
		}

		m.mu.Lock()
		item, ok := m.queue.PopItem()
		if ok {
			ev := item.Value.(*Event)
			m.currentTime = item.Time
			m.currentEventID = item.ID
			cancelled := ev.Cancel
			m.mu.Unlock()

			m.metrics.SetQueueDepth(m.queue.Len())

			if cancelled {
				m.metrics.IncCancelled()
				m.log.Debug(ctx, "skipped cancelled event", logging.Int64("event_id", item.ID))
			} else {
				m.dispatch(ctx, item.ID, item.Time, ev)
			}
		} else {
			m.mu.Unlock()
		}
	}

	if m.external {
		m.mu.Lock()
		if m.queue.Len() != 0 {
			m.mu.Unlock()
			return nil
		}
		m.suspended = true
		m.mu.Unlock()
		m.metrics.SetSuspended(true)
		m.log.Debug(ctx, "queue empty, suspending for external schedule")

		select {
		case <-m.wakeCh:
			m.mu.Lock()
			m.suspended = false
			m.mu.Unlock()
			m.metrics.SetSuspended(false)
		case <-ctx.Done():
			m.mu.Lock()
			m.suspended = false
			m.runFlag = false
			m.mu.Unlock()
			m.metrics.SetSuspended(false)
			return ctx.Err()
		}
	}

	return nil
}

// dispatch invokes a single event's handler inside a trace span, recording
// duration and count metrics. It does not recover from a panicking
// handler: the panic unwinds through Run to its caller, matching the
// reference engine's unrecovered-exception behavior.
func (m *Manager) dispatch(ctx context.Context, id int64, t vrtime.Time, ev *Event) {
	_, span := m.tracer.Start(ctx, "evt.dispatch", trace.WithAttributes(
		attribute.Int64("event.id", id),
		attribute.Int64("event.ticks", t.Ticks()),
		attribute.Int64("event.priority", t.Pri()),
		attribute.Int64("event.schedule_seq", ev.ScheduleSeq),
	))
	defer span.End()

	start := time.Now()
	ev.Handler(m, ev.Context, ev.Data)
	elapsed := time.Since(start)

	m.metrics.ObserveDispatch(elapsed)
	m.metrics.IncDispatched()

	m.log.Debug(ctx, "dispatched event",
		logging.Int64("event_id", id),
		logging.Int64("ticks", t.Ticks()),
		logging.Int64("schedule_seq", ev.ScheduleSeq),
	)
}

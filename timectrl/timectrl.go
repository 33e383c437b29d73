// Package timectrl provides real-time pacing for wallclock-aligned
// simulation runs.
//
// It is adapted from the constellation simulator's TimeController: the same
// sync.RWMutex-guarded current-time bookkeeping, but driven by vrtime.Time
// instead of a fixed-interval ticker, since an evt.Manager in wallclock mode
// needs to sleep an amount derived from the gap between two arbitrary
// virtual-time instants, not a uniform tick.
package timectrl

import (
	"sync"
	"time"

	"github.com/signalsfoundry/eventsim/vrtime"
)

// Pacer tracks the real-world instant a simulation run started and computes
// how long the dispatch loop should sleep so that virtual time advances at
// (approximately) the same rate as wall-clock time.
type Pacer struct {
	mu    sync.RWMutex
	start time.Time
	base  vrtime.Time
}

// NewPacer constructs a Pacer anchored at the given wall-clock instant and
// virtual-time instant. The anchor is what Elapsed measures from;
// SleepUntil's delay depends only on the two times passed to it.
func NewPacer(start time.Time, base vrtime.Time) *Pacer {
	return &Pacer{start: start, base: base}
}

// Reset re-anchors the pacer, e.g. at the start of a new Run call.
func (p *Pacer) Reset(start time.Time, base vrtime.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = start
	p.base = base
}

// SleepUntil blocks until the real-world instant corresponding to target has
// elapsed since current, best-effort. It never blocks for a negative
// duration.
func (p *Pacer) SleepUntil(current, target vrtime.Time) {
	d := p.delay(current, target)
	if d > 0 {
		time.Sleep(d)
	}
}

// delay computes how long the caller should sleep, right now, to align
// virtual time target with wall-clock time given that current virtual time
// has already been reached.
func (p *Pacer) delay(current, target vrtime.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	gapSeconds := vrtime.TicksToSeconds(target.Ticks() - current.Ticks())
	if gapSeconds <= 0 {
		return 0
	}
	return time.Duration(gapSeconds * float64(time.Second))
}

// Elapsed reports how much wall-clock time has passed since the pacer's
// anchor.
func (p *Pacer) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.start)
}

// Package vrtime defines and manages virtual time inside a simulator.
//
// Time is tracked as an integral number of ticks since an epoch, along with
// a secondary sort value (priority) that provides deterministic ordering
// among events that share a tick count.
package vrtime

import (
	"fmt"
	"math"
)

// TicksPerSecond is the frequency of the ticker. Default is 1e10 (0.1ns/tick).
var TicksPerSecond int64 = 1e10

// FloatTicksPerSecond is a float64 representation of TicksPerSecond.
var FloatTicksPerSecond float64 = float64(TicksPerSecond)

// SecondPerTick gives a float64 representation of the tick size in seconds.
var SecondPerTick float64 = 1.0 / FloatTicksPerSecond

// NanoSecPerTick gives the tick size in nanoseconds, truncated to an integer
// (0 at the default rate of 0.1ns/tick).
var NanoSecPerTick int64 = int64(1e9 * SecondPerTick)

// TickValue gives the size of a tick, in seconds.
var TickValue float64 = 1.0 / FloatTicksPerSecond

// SetTicksPerSecond changes the value of TicksPerSecond (the frequency of the
// ticker) and the associated derived constants. This is a process-wide,
// startup-only operation: it MUST NOT be called while any EventManager is
// running, or behavior is undefined.
func SetTicksPerSecond(tps int64) {
	TicksPerSecond = tps
	FloatTicksPerSecond = float64(tps)
	SecondPerTick = 1.0 / FloatTicksPerSecond
	NanoSecPerTick = int64(1e9 * SecondPerTick)
	TickValue = 1.0 / FloatTicksPerSecond
}

// Time measures the number of ticks since the epoch. The tick count provides
// a natural ordering of time values -- smaller numbers happen earlier than
// larger numbers. To provide determinism, the order in which simultaneous
// events occur is specified by Priority -- among simultaneous events,
// smaller Priority values occur before larger ones.
type Time struct {
	TickCnt  int64
	Priority int64
}

// New creates a Time value.
func New(ticks, priority int64) Time {
	return Time{TickCnt: ticks, Priority: priority}
}

// Ticks returns the primary key of a Time, usually used to describe a
// length of time (e.g. between events).
func (t Time) Ticks() int64 { return t.TickCnt }

// Seconds returns the float64 representation of Ticks.
func (t Time) Seconds() float64 { return TicksToSeconds(t.TickCnt) }

// Pri returns the priority of an event, the secondary sort key among equal
// ticks. Lower priority numbers are ordered before higher ones.
func (t Time) Pri() int64 { return t.Priority }

// SetTicks sets the ticks of a Time. Does not modify Priority.
func (t *Time) SetTicks(v int64) { t.TickCnt = v }

// SetPri sets the Priority of a Time. Does not modify Ticks.
func (t *Time) SetPri(p int64) { t.Priority = p }

// String formats Time as "(ticks,pri)".
func (t Time) String() string {
	return fmt.Sprintf("(%d,%d)", t.TickCnt, t.Priority)
}

// SecondsString renders Time as fractional seconds rather than ticks, e.g.
// "(1.230000e-05,3)".
func (t Time) SecondsString() string {
	return fmt.Sprintf("(%e,%d)", TicksToSeconds(t.TickCnt), t.Priority)
}

// LT reports whether t is strictly earlier than o.
func (t Time) LT(o Time) bool { return Cmp(t, o) == -1 }

// GT reports whether t is strictly later than o.
func (t Time) GT(o Time) bool { return Cmp(t, o) == 1 }

// EQ reports whether t and o are identical (both ticks and priority).
func (t Time) EQ(o Time) bool { return Cmp(t, o) == 0 }

// LE reports whether t is earlier than or equal to o.
func (t Time) LE(o Time) bool { return t.LT(o) || t.EQ(o) }

// GE reports whether t is later than or equal to o.
func (t Time) GE(o Time) bool { return t.GT(o) || t.EQ(o) }

// NE reports whether t and o differ in either ticks or priority.
func (t Time) NE(o Time) bool { return !t.EQ(o) }

// Plus adds the receiver to another Time. The tick counts sum; the
// resulting priority is the dominant (larger) of the two priorities.
//
// Overflow of the summed tick count is not guarded against; callers must
// keep durations bounded.
func (t Time) Plus(o Time) Time {
	pri := t.Priority
	if o.Priority > pri {
		pri = o.Priority
	}
	return Time{TickCnt: t.TickCnt + o.TickCnt, Priority: pri}
}

// Cmp compares two Time values lexicographically by (ticks, priority),
// returning -1, 0, or 1 the way standard comparison functions do.
func Cmp(lhs, rhs Time) int {
	switch {
	case lhs.TickCnt < rhs.TickCnt:
		return -1
	case lhs.TickCnt > rhs.TickCnt:
		return 1
	}
	switch {
	case lhs.Priority < rhs.Priority:
		return -1
	case lhs.Priority > rhs.Priority:
		return 1
	}
	return 0
}

// Zero returns a Time with value zero in both fields.
func Zero() Time { return Time{} }

// Infinity marks the end of time. Every other time in a running simulation
// is less than Infinity.
func Infinity() Time { return Time{TickCnt: math.MaxInt64, Priority: math.MaxInt64} }

// FromSeconds converts a fractional number of seconds into a Time with
// Priority 0.
func FromSeconds(v float64) Time {
	return Time{TickCnt: SecondsToTicks(v), Priority: 0}
}

// FromSecondsPri converts a fractional number of seconds into a Time with
// the given Priority.
func FromSecondsPri(v float64, pri int64) Time {
	return Time{TickCnt: SecondsToTicks(v), Priority: pri}
}

// FromMicroseconds converts a fractional number of microseconds into a
// whole number of ticks.
func FromMicroseconds(v float64) int64 {
	return int64(math.Round(v * FloatTicksPerSecond / 1e6))
}

// SecondsToTicks converts a fractional number of seconds into a whole
// number of ticks, rounding to the nearest tick.
func SecondsToTicks(v float64) int64 {
	return int64(math.Round(v * FloatTicksPerSecond))
}

// TicksToSeconds converts a whole number of ticks into a fractional number
// of seconds.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / FloatTicksPerSecond
}

// ToSeconds converts a Time into a fractional number of seconds. The
// Priority field is ignored.
func ToSeconds(t Time) float64 {
	return float64(t.TickCnt) / FloatTicksPerSecond
}

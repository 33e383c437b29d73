package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// EngineCollector bundles Prometheus metrics for an evt.Manager. It follows
// the same register-against-a-Registerer, fall-back-to-existing-on-
// AlreadyRegistered pattern the constellation simulator used for its NBI and
// scheduler collectors, consolidated into a single collector since the
// engine core is a single component rather than several RPC services.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	QueueDepth         prometheus.Gauge
	EventsDispatched   prometheus.Counter
	EventsCancelled    prometheus.Counter
	DispatchDuration   prometheus.Histogram
	Suspended          prometheus.Gauge
	ScheduleCallsTotal prometheus.Counter
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queueDepth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evtsim_queue_depth",
		Help: "Current number of live entries in the event queue.",
	}), "evtsim_queue_depth")
	if err != nil {
		return nil, err
	}

	dispatched, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtsim_events_dispatched_total",
		Help: "Cumulative number of events popped from the queue and dispatched to a handler.",
	}), "evtsim_events_dispatched_total")
	if err != nil {
		return nil, err
	}

	cancelled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtsim_events_cancelled_total",
		Help: "Cumulative number of popped events that were skipped because they had been cancelled.",
	}), "evtsim_events_cancelled_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evtsim_dispatch_duration_seconds",
		Help:    "Wall-clock duration of synchronous handler invocations.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 5},
	}), "evtsim_dispatch_duration_seconds")
	if err != nil {
		return nil, err
	}

	suspended, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evtsim_suspended",
		Help: "1 while the dispatch loop is blocked waiting for an external schedule, 0 otherwise.",
	}), "evtsim_suspended")
	if err != nil {
		return nil, err
	}

	scheduleCalls, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evtsim_schedule_calls_total",
		Help: "Cumulative number of Schedule calls accepted by the manager.",
	}), "evtsim_schedule_calls_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:           gatherer,
		QueueDepth:         queueDepth,
		EventsDispatched:   dispatched,
		EventsCancelled:    cancelled,
		DispatchDuration:   duration,
		Suspended:          suspended,
		ScheduleCallsTotal: scheduleCalls,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetQueueDepth updates the queue depth gauge.
func (c *EngineCollector) SetQueueDepth(n int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// IncDispatched increments the dispatched-events counter.
func (c *EngineCollector) IncDispatched() {
	if c == nil || c.EventsDispatched == nil {
		return
	}
	c.EventsDispatched.Inc()
}

// IncCancelled increments the cancelled-events counter.
func (c *EngineCollector) IncCancelled() {
	if c == nil || c.EventsCancelled == nil {
		return
	}
	c.EventsCancelled.Inc()
}

// ObserveDispatch records a handler invocation duration.
func (c *EngineCollector) ObserveDispatch(d time.Duration) {
	if c == nil || c.DispatchDuration == nil {
		return
	}
	c.DispatchDuration.Observe(d.Seconds())
}

// SetSuspended reflects whether the dispatch loop is currently blocked.
func (c *EngineCollector) SetSuspended(suspended bool) {
	if c == nil || c.Suspended == nil {
		return
	}
	if suspended {
		c.Suspended.Set(1)
	} else {
		c.Suspended.Set(0)
	}
}

// IncScheduleCalls increments the schedule-calls counter.
func (c *EngineCollector) IncScheduleCalls() {
	if c == nil || c.ScheduleCallsTotal == nil {
		return
	}
	c.ScheduleCallsTotal.Inc()
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
